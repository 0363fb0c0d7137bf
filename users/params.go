package users

import "github.com/identitykit/identitykit-go/internal/utils"

// UserToCreate accumulates the properties of a new user record.
type UserToCreate struct {
	uid           *string
	email         *string
	emailVerified *bool
	password      *string
	displayName   *string
	phoneNumber   *string
	photoURL      *string
	disabled      *bool
}

func (u *UserToCreate) UID(uid string) *UserToCreate {
	u.uid = utils.Ptr(uid)
	return u
}

func (u *UserToCreate) Email(email string) *UserToCreate {
	u.email = utils.Ptr(email)
	return u
}

func (u *UserToCreate) EmailVerified(verified bool) *UserToCreate {
	u.emailVerified = utils.Ptr(verified)
	return u
}

func (u *UserToCreate) Password(password string) *UserToCreate {
	u.password = utils.Ptr(password)
	return u
}

func (u *UserToCreate) DisplayName(name string) *UserToCreate {
	u.displayName = utils.Ptr(name)
	return u
}

func (u *UserToCreate) PhoneNumber(phone string) *UserToCreate {
	u.phoneNumber = utils.Ptr(phone)
	return u
}

func (u *UserToCreate) PhotoURL(url string) *UserToCreate {
	u.photoURL = utils.Ptr(url)
	return u
}

func (u *UserToCreate) Disabled(disabled bool) *UserToCreate {
	u.disabled = utils.Ptr(disabled)
	return u
}

// Properties returns the wire property map for createNewAccount.
func (u *UserToCreate) Properties() map[string]any {
	props := make(map[string]any)
	setIfPresent(props, "localId", u.uid)
	setIfPresent(props, "email", u.email)
	setIfPresent(props, "emailVerified", u.emailVerified)
	setIfPresent(props, "password", u.password)
	setIfPresent(props, "displayName", u.displayName)
	setIfPresent(props, "phoneNumber", u.phoneNumber)
	setIfPresent(props, "photoUrl", u.photoURL)
	setIfPresent(props, "disabled", u.disabled)
	return props
}

// UserToUpdate accumulates changes to an existing record. Setting the
// display name, photo URL or phone number to the empty string clears the
// field on the backend.
type UserToUpdate struct {
	email         *string
	emailVerified *bool
	password      *string
	displayName   *string
	phoneNumber   *string
	photoURL      *string
	disabled      *bool
}

func (u *UserToUpdate) Email(email string) *UserToUpdate {
	u.email = utils.Ptr(email)
	return u
}

func (u *UserToUpdate) EmailVerified(verified bool) *UserToUpdate {
	u.emailVerified = utils.Ptr(verified)
	return u
}

func (u *UserToUpdate) Password(password string) *UserToUpdate {
	u.password = utils.Ptr(password)
	return u
}

func (u *UserToUpdate) DisplayName(name string) *UserToUpdate {
	u.displayName = utils.Ptr(name)
	return u
}

func (u *UserToUpdate) PhoneNumber(phone string) *UserToUpdate {
	u.phoneNumber = utils.Ptr(phone)
	return u
}

func (u *UserToUpdate) PhotoURL(url string) *UserToUpdate {
	u.photoURL = utils.Ptr(url)
	return u
}

func (u *UserToUpdate) Disabled(disabled bool) *UserToUpdate {
	u.disabled = utils.Ptr(disabled)
	return u
}

// Properties returns the wire property map for updateExistingAccount.
func (u *UserToUpdate) Properties() map[string]any {
	props := make(map[string]any)
	var deleteAttributes []string
	var deleteProviders []string

	setIfPresent(props, "email", u.email)
	setIfPresent(props, "emailVerified", u.emailVerified)
	setIfPresent(props, "password", u.password)
	setIfPresent(props, "disabled", u.disabled)

	if u.displayName != nil {
		if name := utils.Value(u.displayName); name == "" {
			deleteAttributes = append(deleteAttributes, "DISPLAY_NAME")
		} else {
			props["displayName"] = name
		}
	}
	if u.photoURL != nil {
		if url := utils.Value(u.photoURL); url == "" {
			deleteAttributes = append(deleteAttributes, "PHOTO_URL")
		} else {
			props["photoUrl"] = url
		}
	}
	if u.phoneNumber != nil {
		if phone := utils.Value(u.phoneNumber); phone == "" {
			deleteProviders = append(deleteProviders, "phone")
		} else {
			props["phoneNumber"] = phone
		}
	}

	if len(deleteAttributes) > 0 {
		props["deleteAttribute"] = deleteAttributes
	}
	if len(deleteProviders) > 0 {
		props["deleteProvider"] = deleteProviders
	}
	return props
}

func setIfPresent[T any](props map[string]any, key string, value *T) {
	if value != nil {
		props[key] = *value
	}
}

// Package users defines the stable user-record shape returned by the
// facade and the parameter builders for create/update calls.
package users

import (
	"fmt"
	"strconv"
	"time"
)

// UserMetadata captures the record's creation and last sign-in times.
type UserMetadata struct {
	CreationTime   time.Time `json:"creation_time,omitempty"`
	LastSignInTime time.Time `json:"last_sign_in_time,omitempty"`
}

// UserInfo describes one federated provider linked to a user.
type UserInfo struct {
	UID         string `json:"uid,omitempty"`
	ProviderID  string `json:"provider_id,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// UserRecord is the stable shape a raw account-info response is
// translated into. Absent fields are zero-valued.
type UserRecord struct {
	UID           string       `json:"uid"`
	Email         string       `json:"email,omitempty"`
	EmailVerified bool         `json:"email_verified,omitempty"`
	DisplayName   string       `json:"display_name,omitempty"`
	PhoneNumber   string       `json:"phone_number,omitempty"`
	PhotoURL      string       `json:"photo_url,omitempty"`
	Disabled      bool         `json:"disabled,omitempty"`
	Metadata      UserMetadata `json:"metadata,omitempty"`
	ProviderData  []*UserInfo  `json:"provider_data,omitempty"`
}

// ParseUserRecord translates the raw account-info JSON object into a
// UserRecord.
func ParseUserRecord(raw map[string]any) (*UserRecord, error) {
	uid := stringField(raw, "localId")
	if uid == "" {
		return nil, fmt.Errorf("account info has no localId field")
	}

	record := &UserRecord{
		UID:           uid,
		Email:         stringField(raw, "email"),
		EmailVerified: boolField(raw, "emailVerified"),
		DisplayName:   stringField(raw, "displayName"),
		PhoneNumber:   stringField(raw, "phoneNumber"),
		PhotoURL:      stringField(raw, "photoUrl"),
		Disabled:      boolField(raw, "disabled"),
		Metadata: UserMetadata{
			CreationTime:   millisField(raw, "createdAt"),
			LastSignInTime: millisField(raw, "lastLoginAt"),
		},
	}

	if providers, ok := raw["providerUserInfo"].([]any); ok {
		for _, p := range providers {
			info, ok := p.(map[string]any)
			if !ok {
				continue
			}
			record.ProviderData = append(record.ProviderData, &UserInfo{
				UID:         stringField(info, "rawId"),
				ProviderID:  stringField(info, "providerId"),
				Email:       stringField(info, "email"),
				DisplayName: stringField(info, "displayName"),
				PhoneNumber: stringField(info, "phoneNumber"),
				PhotoURL:    stringField(info, "photoUrl"),
			})
		}
	}
	return record, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// millisField reads an epoch-milliseconds timestamp. The API emits these
// as strings in some responses and numbers in others.
func millisField(m map[string]any, key string) time.Time {
	var millis int64
	switch v := m[key].(type) {
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}
		}
		millis = parsed
	case float64:
		millis = int64(v)
	default:
		return time.Time{}
	}
	if millis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

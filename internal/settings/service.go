// Package settings stores per-organization configuration as opaque JSON.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/pkg/apperr"
	"github.com/hugh/pipedesk/pkg/crypto"
	"gorm.io/datatypes"
)

// Well-known keys.
const (
	KeyAirtableAPIKey     = "airtable.apiKey"
	KeyAirtableBaseID     = "airtable.baseId"
	KeyAirtableLeadsTable = "airtable.leadsTable"
)

// Sensitive values are encrypted at rest and masked on read.
var sensitiveKeys = map[string]bool{
	KeyAirtableAPIKey: true,
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,100}$`)

var (
	ErrInvalidKey      = apperr.Validation("Setting key must be 1-100 letters, digits, '.', '_' or '-'")
	ErrInvalidValue    = apperr.Validation("Setting value must be valid JSON")
	ErrSecretNotString = apperr.Validation("Secret settings must be JSON strings")
	ErrSettingNotFound = apperr.NotFound("Setting not found")
)

type sealed struct {
	Ciphertext string `json:"ciphertext"`
}

type Service struct {
	store  *store.Store
	audit  *audit.Recorder
	enc    *crypto.Encryptor
	logger *slog.Logger
}

func NewService(st *store.Store, recorder *audit.Recorder, enc *crypto.Encryptor, logger *slog.Logger) *Service {
	return &Service{store: st, audit: recorder, enc: enc, logger: logger}
}

// List returns every setting of the organization keyed by name, with
// secrets masked.
func (s *Service) List(ctx context.Context, p *access.Principal) (map[string]json.RawMessage, error) {
	if err := p.Require(access.ResourceSettings, access.ActionRead); err != nil {
		return nil, err
	}

	rows, err := s.store.ListSettings(ctx, p.OrganizationID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(rows))
	for i := range rows {
		out[rows[i].Key] = json.RawMessage(s.present(&rows[i]).Value)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, p *access.Principal, key string) (*models.Setting, error) {
	if err := p.Require(access.ResourceSettings, access.ActionRead); err != nil {
		return nil, err
	}

	setting, err := s.store.GetSetting(ctx, p.OrganizationID, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return s.present(setting), nil
}

// Put upserts a setting. Admins only.
func (s *Service) Put(ctx context.Context, p *access.Principal, key string, value json.RawMessage) (*models.Setting, error) {
	if err := p.Require(access.ResourceSettings, access.ActionUpdate); err != nil {
		return nil, err
	}
	if !keyPattern.MatchString(key) {
		return nil, ErrInvalidKey
	}
	if len(value) == 0 || !json.Valid(value) {
		return nil, ErrInvalidValue
	}

	stored := value
	if sensitiveKeys[key] {
		var plain string
		if err := json.Unmarshal(value, &plain); err != nil {
			return nil, ErrSecretNotString
		}
		var err error
		if stored, err = s.seal(plain); err != nil {
			return nil, err
		}
	}

	setting := &models.Setting{
		OrganizationID: p.OrganizationID,
		Key:            key,
		Value:          datatypes.JSON(stored),
		UpdatedBy:      p.Actor(),
	}
	if err := s.store.UpsertSetting(ctx, setting); err != nil {
		return nil, fmt.Errorf("saving setting: %w", err)
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionUpdate,
		Entity:         audit.EntitySetting,
		EntityID:       key,
	})

	return s.present(setting), nil
}

func (s *Service) Delete(ctx context.Context, p *access.Principal, key string) error {
	if err := p.Require(access.ResourceSettings, access.ActionDelete); err != nil {
		return err
	}
	if err := s.store.DeleteSetting(ctx, p.OrganizationID, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSettingNotFound
		}
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		OrganizationID: p.OrganizationID,
		ActorID:        p.Actor(),
		Action:         audit.ActionDelete,
		Entity:         audit.EntitySetting,
		EntityID:       key,
	})
	return nil
}

// GetString reads a string setting for internal use, decrypting secrets.
// A missing setting yields "" and no error.
func (s *Service) GetString(ctx context.Context, orgID uuid.UUID, key string) (string, error) {
	setting, err := s.store.GetSetting(ctx, orgID, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	if sensitiveKeys[key] {
		return s.open(setting.Value)
	}

	var value string
	if err := json.Unmarshal(setting.Value, &value); err != nil {
		return "", fmt.Errorf("setting %s is not a string: %w", key, err)
	}
	return value, nil
}

// SaveString stores a string setting for internal use. Callers record
// their own audit entry.
func (s *Service) SaveString(ctx context.Context, orgID uuid.UUID, actor *uuid.UUID, key, value string) error {
	var raw []byte
	var err error
	if sensitiveKeys[key] {
		raw, err = s.seal(value)
	} else {
		raw, err = json.Marshal(value)
	}
	if err != nil {
		return err
	}

	return s.store.UpsertSetting(ctx, &models.Setting{
		OrganizationID: orgID,
		Key:            key,
		Value:          datatypes.JSON(raw),
		UpdatedBy:      actor,
	})
}

func (s *Service) seal(plain string) ([]byte, error) {
	ciphertext, err := s.enc.EncryptString(plain)
	if err != nil {
		return nil, fmt.Errorf("encrypting setting: %w", err)
	}
	return json.Marshal(sealed{Ciphertext: ciphertext})
}

func (s *Service) open(raw []byte) (string, error) {
	var box sealed
	if err := json.Unmarshal(raw, &box); err != nil || box.Ciphertext == "" {
		return "", fmt.Errorf("secret setting is not sealed")
	}
	return s.enc.DecryptString(box.Ciphertext)
}

// present returns a copy safe to show to members.
func (s *Service) present(setting *models.Setting) *models.Setting {
	if !sensitiveKeys[setting.Key] {
		return setting
	}

	masked := "****"
	if plain, err := s.open(setting.Value); err == nil {
		masked = crypto.Mask(plain)
	} else {
		s.logger.Warn("unable to open secret setting", "org_id", setting.OrganizationID, "key", setting.Key, "error", err)
	}

	raw, _ := json.Marshal(masked)
	out := *setting
	out.Value = datatypes.JSON(raw)
	return &out
}

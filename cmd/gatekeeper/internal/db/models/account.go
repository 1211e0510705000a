package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Account statuses. Only AccountStatusEnabled accounts can authenticate.
const (
	AccountStatusEnabled    = "ENABLED"
	AccountStatusDisabled   = "DISABLED"
	AccountStatusUnverified = "UNVERIFIED"
)

// API key statuses.
const (
	APIKeyStatusEnabled  = "ENABLED"
	APIKeyStatusDisabled = "DISABLED"
)

// Account represents a directory account.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID         string    `bun:"id,pk"`
	Username   string    `bun:"username,notnull,unique"`
	Email      string    `bun:"email,notnull,unique"`
	GivenName  string    `bun:"given_name"`
	Surname    string    `bun:"surname"`
	Status     string    `bun:"status,notnull,default:'ENABLED'"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	ModifiedAt time.Time `bun:"modified_at,notnull,default:current_timestamp"`
}

// IsEnabled reports whether the account may authenticate.
func (a *Account) IsEnabled() bool {
	return a != nil && a.Status == AccountStatusEnabled
}

// APIKey is an id/secret pair owned by an account, presented via HTTP Basic.
type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak"`

	ID         string     `bun:"id,pk"`
	AccountID  string     `bun:"account_id,notnull"`
	SecretHash string     `bun:"secret_hash,notnull"` // bcrypt hash
	Status     string     `bun:"status,notnull,default:'ENABLED'"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	LastUsedAt *time.Time `bun:"last_used_at"`
}

// CustomData is the per-account extended attribute bundle.
type CustomData struct {
	bun.BaseModel `bun:"table:custom_data,alias:cd"`

	AccountID  string    `bun:"account_id,pk"`
	Data       JSONMap   `bun:"data,type:jsonb,notnull,default:'{}'"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	ModifiedAt time.Time `bun:"modified_at,notnull,default:current_timestamp"`
}

// IssuedRefreshToken tracks refresh tokens handed out by the directory so a
// rotated token cannot be used twice.
type IssuedRefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`

	JTI       string     `bun:"jti,pk"`
	AccountID string     `bun:"account_id,notnull"`
	IssuedAt  time.Time  `bun:"issued_at,notnull,default:current_timestamp"`
	ExpiresAt time.Time  `bun:"expires_at,notnull"`
	UsedAt    *time.Time `bun:"used_at"`
}

// JSONMap is a free-form JSON object column.
type JSONMap map[string]any

// Scan implements sql.Scanner for reading from database
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = make(JSONMap)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan JSONMap: expected []byte or string, got %T", value)
	}
	if len(bytes) == 0 {
		*m = make(JSONMap)
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// Value implements driver.Valuer for writing to database
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

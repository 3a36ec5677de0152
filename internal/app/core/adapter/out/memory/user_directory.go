package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-statement-ledger/internal/app/core/usecase"
)

// ErrEmailTaken email 已被其他使用者使用
var ErrEmailTaken = errors.New("email already registered")

// UserDirectory 記憶體版的使用者目錄 (測試與單機模式使用)
type UserDirectory struct {
	mu      sync.RWMutex
	byID    map[string]string // id -> email
	byEmail map[string]string // email -> id
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		byID:    make(map[string]string),
		byEmail: make(map[string]string),
	}
}

// CreateUser 註冊使用者並回傳新 ID，email 不分大小寫且必須唯一
func (d *UserDirectory) CreateUser(ctx context.Context, email string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return "", errors.New("email is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byEmail[key]; ok {
		return "", ErrEmailTaken
	}
	id := uuid.NewString()
	d.byID[id] = key
	d.byEmail[key] = id
	return id, nil
}

// RegisterUser 以指定 ID 註冊使用者 (啟動時載入固定帳號用)
// 同一組 id/email 重複註冊視為成功
func (d *UserDirectory) RegisterUser(ctx context.Context, id, email string) error {
	key := strings.ToLower(strings.TrimSpace(email))
	if id == "" || key == "" {
		return errors.New("id and email are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if owner, ok := d.byEmail[key]; ok {
		if owner == id {
			return nil
		}
		return ErrEmailTaken
	}
	if _, ok := d.byID[id]; ok {
		return fmt.Errorf("user id %s already registered", id)
	}
	d.byID[id] = key
	d.byEmail[key] = id
	return nil
}

// UserExists implements usecase.UserDirectory.
func (d *UserDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byID[userID]
	return ok, nil
}

var _ usecase.UserDirectory = (*UserDirectory)(nil)

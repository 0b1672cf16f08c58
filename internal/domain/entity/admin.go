package entity

import "golang.org/x/crypto/bcrypt"

// AdminCredentials хранит учетные данные администратора.
// Пароль хранится только в виде bcrypt-хеша.
type AdminCredentials struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// NewAdminCredentials создает учетные данные с захешированным паролем.
func NewAdminCredentials(username, password string) (*AdminCredentials, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &AdminCredentials{
		Username:     username,
		PasswordHash: string(hash),
	}, nil
}

// CheckPassword сравнивает пароль с сохраненным хешем.
func (c *AdminCredentials) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
}

// SetPassword заменяет хеш пароля на хеш нового пароля.
func (c *AdminCredentials) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.PasswordHash = string(hash)
	return nil
}

package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for password hashing. The default is fine
// for an internal organizer tool.
const bcryptCost = bcrypt.DefaultCost

// HashPassword hashes a plain password with bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

// CheckPassword reports whether plain matches the bcrypt hash.
func CheckPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

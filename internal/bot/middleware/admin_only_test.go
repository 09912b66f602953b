package middleware

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestIsAdmin(t *testing.T) {
	admins := []tgbotapi.ChatMember{
		{User: &tgbotapi.User{ID: 10}, Status: "creator"},
		{Status: "administrator"},
		{User: &tgbotapi.User{ID: 20}, Status: "administrator"},
	}

	if !isAdmin(admins, 20) {
		t.Errorf("isAdmin(20) = false, want true")
	}
	if isAdmin(admins, 30) {
		t.Errorf("isAdmin(30) = true, want false")
	}
}

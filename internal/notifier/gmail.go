package notifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kovalyov-valentin/news-digest/internal/digest"
	"github.com/kovalyov-valentin/news-digest/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailTransport отправляет дайджест через Gmail API от имени авторизованного ящика
type GmailTransport struct {
	service *gmail.Service
	sender  string
}

// NewGmailTransport читает OAuth client credentials и сохраненный токен.
// Интерактивной авторизации нет, токен нужно получить заранее
func NewGmailTransport(ctx context.Context, credentialsFile, tokenFile, sender string) (*GmailTransport, error) {
	credentials, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(credentials, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}

	token, err := readToken(tokenFile)
	if err != nil {
		return nil, err
	}

	// Токен обновляется в фоне, отмена контекста запуска не должна это ломать
	ctx = context.WithoutCancel(ctx)

	service, err := gmail.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	return &GmailTransport{service: service, sender: sender}, nil
}

func (t *GmailTransport) Send(ctx context.Context, d digest.Digest, recipient model.User) error {
	raw, err := BuildMessage(d, t.sender, recipient.Email)
	if err != nil {
		return err
	}

	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}

	if _, err := t.service.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail send to %s: %w", recipient.Email, err)
	}

	return nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gmail token: %w", err)
	}
	defer f.Close()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode gmail token: %w", err)
	}

	return &token, nil
}

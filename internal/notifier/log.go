package notifier

import (
	"context"
	"log"
	"strings"

	"github.com/kovalyov-valentin/news-digest/internal/digest"
	"github.com/kovalyov-valentin/news-digest/internal/model"
)

// LogTransport ничего не отправляет, только пишет дайджест в лог. Для локального запуска
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, d digest.Digest, recipient model.User) error {
	log.Printf(
		"[INFO] digest for %s: %q, %d articles [%s]",
		recipient.Email, d.Subject, d.Total, strings.Join(d.Fingerprints(), ","),
	)
	return nil
}

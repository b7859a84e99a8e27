package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	apperrors "dexbit/internal/errors"
	"dexbit/internal/logger"
)

const digestArticleLimit = 8

// newsDigestService assembles the daily market news summary and emails it
// to every active user.
type newsDigestService struct {
	users  UserServicer
	news   NewsProvider
	mailer Mailer
}

// NewNewsDigestService creates a new NewsDigestServicer.
func NewNewsDigestService(users UserServicer, news NewsProvider, mailer Mailer) NewsDigestServicer {
	return &newsDigestService{users: users, news: news, mailer: mailer}
}

// SendDigest fetches general market news, renders it once, and sends the
// summary to each active user. Per-recipient failures are logged and
// skipped; the count of successful sends is returned.
func (s *newsDigestService) SendDigest(ctx context.Context) (int, error) {
	if !s.mailer.Enabled() {
		return 0, apperrors.ErrMailNotConfigured
	}

	articles, err := s.news.GetMarketNews(ctx, "general")
	if err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		logger.Get().Infow("news digest skipped, no articles available")
		return 0, nil
	}
	if len(articles) > digestArticleLimit {
		articles = articles[:digestArticleLimit]
	}

	var b strings.Builder
	for _, article := range articles {
		fmt.Fprintf(&b, `<div style="margin-bottom:16px;">`)
		fmt.Fprintf(&b, `<a href="%s" style="color:#2563eb;font-weight:600;text-decoration:none;">%s</a>`,
			html.EscapeString(article.URL), html.EscapeString(article.Headline))
		if article.Summary != "" {
			fmt.Fprintf(&b, `<p style="margin:4px 0 0;color:#4b5563;">%s</p>`, html.EscapeString(article.Summary))
		}
		fmt.Fprintf(&b, `<span style="color:#9ca3af;font-size:12px;">%s</span>`, html.EscapeString(article.Source))
		b.WriteString(`</div>`)
	}

	users, err := s.users.ListActiveUsers()
	if err != nil {
		return 0, err
	}

	date := time.Now().UTC().Format("January 2, 2006")
	sent := 0
	for _, user := range users {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := s.mailer.SendNewsSummary(user.Email, date, b.String()); err != nil {
			logger.Get().Errorw("failed to send news digest", "error", err, "user_id", user.ID)
			continue
		}
		sent++
	}

	logger.Get().Infow("news digest sent", "recipients", sent, "articles", len(articles))
	return sent, nil
}

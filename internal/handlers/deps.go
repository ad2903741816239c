package handlers

import (
	"context"

	"sproutbot/internal/services"
)

type LinkService interface {
	CompleteLink(ctx context.Context, code, state string) (services.LinkResult, error)
}

type IncidentStore interface {
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type JournalStore interface {
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

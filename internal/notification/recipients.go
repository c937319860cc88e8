package notification

import (
	"context"

	"github.com/pkg/errors"
	"github.com/stanstork/chatpush/internal/models"
	"github.com/stanstork/chatpush/internal/repository"
)

// ResolveRecipients loads every participant except the sender and keeps one
// recipient per push token. When two profiles share a token the later one wins.
// An empty result is not an error.
func ResolveRecipients(ctx context.Context, repo repository.ChatRepository, participants []string, senderID string) ([]models.Recipient, error) {
	profiles, err := repo.ListProfiles(ctx, participants, senderID)
	if err != nil {
		return nil, newDispatchError(ErrLookupFailed, errors.Wrap(err, "list profiles"))
	}

	byToken := make(map[string]int, len(profiles))
	recipients := make([]models.Recipient, 0, len(profiles))
	for _, p := range profiles {
		if p.ID == senderID || p.FCMToken == "" {
			continue
		}
		r := models.Recipient{ProfileID: p.ID, Username: p.Username, Token: p.FCMToken}
		if i, ok := byToken[p.FCMToken]; ok {
			recipients[i] = r
			continue
		}
		byToken[p.FCMToken] = len(recipients)
		recipients = append(recipients, r)
	}
	return recipients, nil
}

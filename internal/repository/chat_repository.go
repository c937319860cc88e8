package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stanstork/chatpush/internal/models"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// ChatRepository is the read side of the chat schema the push pipeline depends on.
type ChatRepository interface {
	GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error)
	ListProfiles(ctx context.Context, ids []string, excludeID string) ([]models.Profile, error)
	GetProfile(ctx context.Context, id string) (models.Profile, error)
}

type chatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	const query = `
		SELECT id::text, COALESCE(participants::text[], '{}'), is_group, name
		FROM chat_rooms
		WHERE id = $1::uuid
	`

	var (
		room         models.ChatRoom
		participants pq.StringArray
		name         sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(roomID)).Scan(&room.ID, &participants, &room.IsGroup, &name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ChatRoom{}, errors.Wrapf(ErrNotFound, "chat room %s", roomID)
		}
		return models.ChatRoom{}, errors.Wrap(err, "query chat room")
	}

	room.Participants = []string(participants)
	if name.Valid {
		val := name.String
		room.Name = &val
	}
	return room, nil
}

func (r *chatRepository) ListProfiles(ctx context.Context, ids []string, excludeID string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
		SELECT id::text, COALESCE(username, ''), COALESCE(fcm_token, '')
		FROM profiles
		WHERE id = ANY($1::uuid[]) AND id::text <> $2
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids), excludeID)
	if err != nil {
		return nil, errors.Wrap(err, "query profiles")
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.FCMToken); err != nil {
			return nil, errors.Wrap(err, "scan profile")
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate profiles")
	}
	return profiles, nil
}

func (r *chatRepository) GetProfile(ctx context.Context, id string) (models.Profile, error) {
	const query = `
		SELECT id::text, COALESCE(username, ''), COALESCE(fcm_token, '')
		FROM profiles
		WHERE id = $1::uuid
	`

	var p models.Profile
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(id)).Scan(&p.ID, &p.Username, &p.FCMToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, errors.Wrapf(ErrNotFound, "profile %s", id)
		}
		return models.Profile{}, errors.Wrap(err, "query profile")
	}
	return p, nil
}

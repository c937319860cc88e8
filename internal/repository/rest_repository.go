package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/stanstork/chatpush/internal/models"
)

// restChatRepository reads the chat schema through a PostgREST endpoint
// (the REST interface a hosted Supabase project exposes under /rest/v1).
type restChatRepository struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// APIError is the error body PostgREST returns for a failed request.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("record store returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("record store returned status %d: %s", e.StatusCode, e.Message)
}

func NewRESTChatRepository(baseURL, apiKey string, timeout time.Duration) ChatRepository {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &restChatRepository{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/") + "/rest/v1",
		apiKey:     apiKey,
	}
}

type restRoom struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
	IsGroup      bool     `json:"is_group"`
	Name         *string  `json:"name"`
}

type restProfile struct {
	ID       string  `json:"id"`
	Username *string `json:"username"`
	FCMToken *string `json:"fcm_token"`
}

func (p restProfile) toModel() models.Profile {
	profile := models.Profile{ID: p.ID}
	if p.Username != nil {
		profile.Username = *p.Username
	}
	if p.FCMToken != nil {
		profile.FCMToken = *p.FCMToken
	}
	return profile
}

func (r *restChatRepository) GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	q := url.Values{}
	q.Set("select", "id,participants,is_group,name")
	q.Set("id", "eq."+strings.TrimSpace(roomID))

	var rooms []restRoom
	if err := r.get(ctx, "chat_rooms", q, &rooms); err != nil {
		return models.ChatRoom{}, errors.Wrap(err, "query chat room")
	}
	if len(rooms) == 0 {
		return models.ChatRoom{}, errors.Wrapf(ErrNotFound, "chat room %s", roomID)
	}

	room := rooms[0]
	return models.ChatRoom{
		ID:           room.ID,
		Participants: room.Participants,
		IsGroup:      room.IsGroup,
		Name:         room.Name,
	}, nil
}

func (r *restChatRepository) ListProfiles(ctx context.Context, ids []string, excludeID string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, `"`+strings.ReplaceAll(id, `"`, `\"`)+`"`)
	}

	q := url.Values{}
	q.Set("select", "id,username,fcm_token")
	q.Add("id", "in.("+strings.Join(quoted, ",")+")")
	q.Add("id", "neq."+excludeID)

	var rows []restProfile
	if err := r.get(ctx, "profiles", q, &rows); err != nil {
		return nil, errors.Wrap(err, "query profiles")
	}

	profiles := make([]models.Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.toModel())
	}
	return profiles, nil
}

func (r *restChatRepository) GetProfile(ctx context.Context, id string) (models.Profile, error) {
	q := url.Values{}
	q.Set("select", "id,username,fcm_token")
	q.Set("id", "eq."+strings.TrimSpace(id))

	var rows []restProfile
	if err := r.get(ctx, "profiles", q, &rows); err != nil {
		return models.Profile{}, errors.Wrap(err, "query profile")
	}
	if len(rows) == 0 {
		return models.Profile{}, errors.Wrapf(ErrNotFound, "profile %s", id)
	}
	return rows[0].toModel(), nil
}

func (r *restChatRepository) get(ctx context.Context, table string, query url.Values, result any) error {
	endpoint := r.baseURL + "/" + table + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

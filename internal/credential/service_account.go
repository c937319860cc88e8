package credential

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/stanstork/chatpush/internal/config"
)

// ServiceAccount holds the fields of a Google service-account key file that the
// token exchange and the FCM endpoint need.
type ServiceAccount struct {
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	ProjectID    string `json:"project_id"`
	TokenURI     string `json:"token_uri"`
}

func LoadServiceAccount(path string) (ServiceAccount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ServiceAccount{}, errors.Wrap(err, "read service account file")
	}

	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return ServiceAccount{}, errors.Wrap(err, "parse service account file")
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return ServiceAccount{}, errors.New("service account file is missing client_email or private_key")
	}
	return sa, nil
}

// ServiceAccountFromConfig loads the key file when one is configured, otherwise
// builds the account from inline settings. Inline settings override file values.
func ServiceAccountFromConfig(cfg config.FirebaseConfig) (ServiceAccount, error) {
	var sa ServiceAccount
	if cfg.ServiceAccountFile != "" {
		loaded, err := LoadServiceAccount(cfg.ServiceAccountFile)
		if err != nil {
			return ServiceAccount{}, err
		}
		sa = loaded
	}

	if cfg.ClientEmail != "" {
		sa.ClientEmail = cfg.ClientEmail
	}
	if cfg.PrivateKey != "" {
		// keys passed through the environment usually carry escaped newlines
		sa.PrivateKey = strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")
	}
	if cfg.PrivateKeyID != "" {
		sa.PrivateKeyID = cfg.PrivateKeyID
	}
	if cfg.ProjectID != "" {
		sa.ProjectID = cfg.ProjectID
	}

	if sa.ProjectID == "" {
		return ServiceAccount{}, errors.New("firebase project id is required")
	}
	return sa, nil
}

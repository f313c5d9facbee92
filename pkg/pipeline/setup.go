package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/synaptica-ai/curator/pkg/common/config"
	"github.com/synaptica-ai/curator/pkg/deid"
	"github.com/synaptica-ai/curator/pkg/dlp"
	"github.com/synaptica-ai/curator/pkg/storage"
)

// NewFilterFromConfig loads the column policy and residual scan rules. A set
// PSEUD_ID_COLUMN overrides the policy file's identifier column; otherwise the
// policy value applies, falling back to person_id.
func NewFilterFromConfig(cfg *config.Config) (*deid.Filter, error) {
	policy := deid.DefaultPolicy()
	if cfg.DeIDPolicyPath != "" {
		loaded, err := deid.LoadPolicy(cfg.DeIDPolicyPath)
		if err != nil {
			return nil, fmt.Errorf("loading de-identification policy: %w", err)
		}
		policy = loaded
	}
	if column := strings.TrimSpace(cfg.IdentifierColumn); column != "" {
		policy.IdentifierColumn = column
	}
	if strings.TrimSpace(policy.IdentifierColumn) == "" {
		policy.IdentifierColumn = deid.DefaultIdentifierColumn
	}

	rules, err := dlp.LoadRules(cfg.DLPRulesPath)
	if err != nil {
		return nil, fmt.Errorf("loading dlp rules: %w", err)
	}
	detector, err := dlp.NewDetector(rules)
	if err != nil {
		return nil, fmt.Errorf("compiling dlp rules: %w", err)
	}

	return deid.NewFilter(policy, cfg.PseudonymSalt, deid.WithScanner(detector)), nil
}

// LayoutFromConfig picks the output layout for remote destinations.
func LayoutFromConfig(cfg *config.Config) Layout {
	if cfg.FlatLayout() {
		return FlatLayout()
	}
	return NestedLayout(cfg.CuratedPrefix, cfg.FHIRPrefix)
}

// DestinationsFromConfig returns the primary store followed by the optional
// local directory and HTTP gateway destinations.
func DestinationsFromConfig(ctx context.Context, cfg *config.Config, primaryName string, primary storage.ObjectStore) ([]storage.Destination, error) {
	dests := []storage.Destination{{Name: primaryName, Store: primary}}

	if cfg.LocalOutputDir != "" {
		dests = append(dests, storage.Destination{Name: "local", Store: storage.NewLocalStore(cfg.LocalOutputDir)})
	}

	if cfg.UploadBaseURL != "" {
		httpStore, err := storage.NewHTTPStore(ctx, storage.HTTPStoreConfig{
			BaseURL:      cfg.UploadBaseURL,
			TokenURL:     cfg.UploadTokenURL,
			ClientID:     cfg.UploadClientID,
			ClientSecret: cfg.UploadClientSecret,
		})
		if err != nil {
			return nil, err
		}
		dests = append(dests, storage.Destination{Name: "http", Store: httpStore})
	}
	return dests, nil
}

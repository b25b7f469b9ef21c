package service

import (
	"context"
	"log"
	"net/mail"
	"sort"
	"strings"

	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/repository"
)

// AudienceSource resolves an audience specification to addresses.
type AudienceSource interface {
	Resolve(ctx context.Context, audienceType string, filter model.AudienceFilter) ([]string, error)
}

type AudienceResolver struct {
	Recipients  repository.RecipientRepositoryInterface
	Preferences repository.PreferenceRepositoryInterface
}

// Resolve returns a sorted, deduplicated address list. Unknown audience
// types resolve to an empty list. Exclusions and global opt-outs are
// removed for every type.
func (a *AudienceResolver) Resolve(ctx context.Context, audienceType string, filter model.AudienceFilter) ([]string, error) {
	var (
		raw []string
		err error
	)
	switch strings.ToLower(strings.TrimSpace(audienceType)) {
	case model.AudienceAll:
		raw, err = a.Recipients.ListActiveEmails(ctx)
	case model.AudienceRole:
		raw, err = a.Recipients.ListEmailsByRoles(ctx, filter.Roles)
	case model.AudienceMunicipality:
		raw, err = a.Recipients.ListEmailsByMunicipalities(ctx, filter.MunicipalityIDs)
	case model.AudienceCustom:
		raw = filter.CustomEmails
	default:
		log.Printf("⚠️ unsupported audience type %q, resolving to zero recipients", audienceType)
	}
	if err != nil {
		return nil, err
	}

	excluded := map[string]bool{}
	for _, e := range normalizeEmails(filter.ExcludeEmails) {
		excluded[e] = true
	}

	emails := make([]string, 0, len(raw))
	for _, e := range normalizeEmails(raw) {
		if !excluded[e] {
			emails = append(emails, e)
		}
	}
	if len(emails) == 0 || a.Preferences == nil {
		return emails, nil
	}

	optedOut, err := a.Preferences.GloballyDisabled(ctx, emails)
	if err != nil {
		return nil, err
	}
	result := emails[:0]
	for _, e := range emails {
		if !optedOut[e] {
			result = append(result, e)
		}
	}
	return result, nil
}

// normalizeEmails lower-cases, validates, deduplicates and sorts addresses.
func normalizeEmails(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			log.Printf("⚠️ dropping invalid address %q: %v", raw, err)
			continue
		}
		e := strings.ToLower(addr.Address)
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

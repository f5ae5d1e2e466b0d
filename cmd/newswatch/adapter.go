package main

import (
	"context"
	"fmt"
	"strings"

	"newswatch/pkg/collector"
	"newswatch/pkg/config"
	"newswatch/pkg/domain"
	"newswatch/pkg/search"
	"newswatch/server"
)

// newsAdapter serves on-demand company searches for the API: it resolves
// the requested name against the rosters, runs a search and ranks the
// results
type newsAdapter struct {
	cfg        *config.Config
	client     *search.Client
	normalizer *collector.Normalizer
}

// CompanyNews looks the company up in the rosters and searches its news.
// Returns server.ErrUnknownEntity when no roster entry matches.
func (a *newsAdapter) CompanyNews(ctx context.Context, company string, window domain.TimeWindow, maxResults int) ([]domain.Article, error) {
	entity, err := a.findEntity(company)
	if err != nil {
		return nil, err
	}

	articles := a.client.Search(ctx, entity.SearchQuery(), maxResults, window)
	return a.normalizer.Rank(articles, entity.DisplayName()), nil
}

// findEntity resolves a company name across all rosters, preferring an
// exact match and falling back to a unique case-insensitive substring
// match
func (a *newsAdapter) findEntity(company string) (domain.Entity, error) {
	var all []domain.Entity
	for _, kind := range []domain.EntityKind{domain.KindClient, domain.KindCompetitor, domain.KindTopic} {
		entities, err := a.cfg.LoadEntities(kind)
		if err != nil {
			return domain.Entity{}, fmt.Errorf("load %s roster: %w", kind, err)
		}
		all = append(all, entities...)
	}

	for _, e := range all {
		if strings.EqualFold(e.Name, company) {
			return e, nil
		}
	}

	var partial []domain.Entity
	needle := strings.ToLower(company)
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			partial = append(partial, e)
		}
	}
	if len(partial) == 1 {
		return partial[0], nil
	}
	if len(partial) > 1 {
		return domain.Entity{}, fmt.Errorf("%q is ambiguous (%d matches): %w", company, len(partial), server.ErrUnknownEntity)
	}
	return domain.Entity{}, fmt.Errorf("%q: %w", company, server.ErrUnknownEntity)
}

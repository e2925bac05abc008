package api

import (
	"errors"

	"github.com/segy-tiles/server/internal/service"
)

// SurveyInfo contains information about a survey for the API response.
type SurveyInfo struct {
	ID string `json:"id"`
}

// SurveyRegistry holds survey services for all configured surveys.
type SurveyRegistry struct {
	services      map[string]*service.SurveyService
	defaultSurvey string
	surveyOrder   []string
}

// NewSurveyRegistry creates a new survey registry.
func NewSurveyRegistry(defaultSurvey string, order []string) *SurveyRegistry {
	return &SurveyRegistry{
		services:      make(map[string]*service.SurveyService),
		defaultSurvey: defaultSurvey,
		surveyOrder:   order,
	}
}

// Register adds a survey service.
func (r *SurveyRegistry) Register(surveyID string, svc *service.SurveyService) {
	r.services[surveyID] = svc
}

// Get returns the survey service for an id, or nil if not found.
func (r *SurveyRegistry) Get(surveyID string) *service.SurveyService {
	return r.services[surveyID]
}

// DefaultSurveyID returns the default survey id.
func (r *SurveyRegistry) DefaultSurveyID() string {
	return r.defaultSurvey
}

// SurveyIDs returns all survey ids in config order.
func (r *SurveyRegistry) SurveyIDs() []string {
	return r.surveyOrder
}

// Surveys returns survey info for all registered surveys.
func (r *SurveyRegistry) Surveys() []SurveyInfo {
	ids := r.SurveyIDs()
	infos := make([]SurveyInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, SurveyInfo{ID: id})
	}
	return infos
}

// Close closes every registered survey.
func (r *SurveyRegistry) Close() error {
	var errs []error
	for _, id := range r.SurveyIDs() {
		if svc := r.services[id]; svc != nil {
			errs = append(errs, svc.Close())
		}
	}
	return errors.Join(errs...)
}

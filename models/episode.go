package models

import (
	"time"

	"gorm.io/gorm"
)

// Episode lifecycle statuses. Episodes of the same project advance
// independently, so two episodes can sit at different stages at once.
const (
	EpisodeStatusScriptGenerating = "SCRIPT_GENERATING"
	EpisodeStatusScriptReview     = "SCRIPT_REVIEW"
	EpisodeStatusStoryboard       = "STORYBOARD"
	EpisodeStatusProduction       = "PRODUCTION"
	EpisodeStatusComposing        = "COMPOSING"
	EpisodeStatusCompleted        = "COMPLETED"
)

// COMPLETED can roll back to SCRIPT_REVIEW (rewrite and reproduce the
// episode) or COMPOSING (recompose with existing clips).
var episodeTransitions = map[string][]string{
	EpisodeStatusScriptGenerating: {EpisodeStatusScriptReview},
	EpisodeStatusScriptReview:     {EpisodeStatusStoryboard, EpisodeStatusScriptGenerating},
	EpisodeStatusStoryboard:       {EpisodeStatusProduction, EpisodeStatusScriptReview},
	EpisodeStatusProduction:       {EpisodeStatusComposing, EpisodeStatusStoryboard},
	EpisodeStatusComposing:        {EpisodeStatusCompleted, EpisodeStatusProduction},
	EpisodeStatusCompleted:        {EpisodeStatusScriptReview, EpisodeStatusComposing},
}

type Episode struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProjectID      string    `gorm:"type:varchar(36);index" json:"projectId"`
	EpisodeNumber  int       `gorm:"default:1" json:"episodeNumber"`
	Title          string    `gorm:"type:varchar(255)" json:"title"`
	Synopsis       string    `gorm:"type:text" json:"synopsis"`
	FullScript     string    `gorm:"type:longtext" json:"fullScript"`
	FinalVideoPath string    `gorm:"type:varchar(1024)" json:"finalVideoPath"`
	Status         string    `gorm:"type:varchar(50)" json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Scenes []Scene `gorm:"foreignKey:EpisodeID;constraint:OnDelete:CASCADE" json:"scenes,omitempty"`
}

func (Episode) TableName() string { return "episodes" }

func EpisodeCanTransition(current, target string) bool {
	for _, t := range episodeTransitions[current] {
		if t == target {
			return true
		}
	}
	return false
}

func (e *Episode) CanTransition(target string) bool {
	return EpisodeCanTransition(e.Status, target)
}

func (e *Episode) TransitionTo(db *gorm.DB, target string) error {
	if !e.CanTransition(target) {
		return &InvalidTransitionError{Entity: "episode", ID: e.ID, From: e.Status, To: target}
	}
	if err := db.Model(e).Updates(map[string]interface{}{
		"status":     target,
		"updated_at": time.Now(),
	}).Error; err != nil {
		return err
	}
	e.Status = target
	return nil
}

func GetEpisodeByID(db *gorm.DB, id string) (*Episode, error) {
	var e Episode
	if err := db.First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func GetEpisodesByProjectID(db *gorm.DB, projectID string) ([]Episode, error) {
	var episodes []Episode
	err := db.Where("project_id = ?", projectID).Order("episode_number ASC").Find(&episodes).Error
	return episodes, err
}

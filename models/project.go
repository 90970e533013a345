package models

import (
	"time"

	"gorm.io/gorm"
)

// Project lifecycle statuses. Transitions are governed by the explicit
// adjacency table below — never by position arithmetic.
const (
	ProjectStatusDraft         = "DRAFT"
	ProjectStatusOutlineReview = "OUTLINE_REVIEW"
	ProjectStatusScriptReview  = "SCRIPT_REVIEW"
	ProjectStatusStoryboard    = "STORYBOARD"
	ProjectStatusProduction    = "PRODUCTION"
	ProjectStatusComposing     = "COMPOSING"
	ProjectStatusCompleted     = "COMPLETED"
)

const (
	ProjectModeStandard   = "STANDARD"
	ProjectModeQuickDraft = "QUICK_DRAFT"
)

// projectStageOrder is used only to classify a valid transition as
// forward or rollback, never to compute reachability.
var projectStageOrder = []string{
	ProjectStatusDraft,
	ProjectStatusOutlineReview,
	ProjectStatusScriptReview,
	ProjectStatusStoryboard,
	ProjectStatusProduction,
	ProjectStatusComposing,
	ProjectStatusCompleted,
}

// projectTransitions: each status maps to its one forward step and its
// one-step rollback. COMPLETED is terminal for normal callers; crash
// recovery rewrites it directly when reprocessing is needed.
var projectTransitions = map[string][]string{
	ProjectStatusDraft:         {ProjectStatusOutlineReview},
	ProjectStatusOutlineReview: {ProjectStatusScriptReview, ProjectStatusDraft},
	ProjectStatusScriptReview:  {ProjectStatusStoryboard, ProjectStatusOutlineReview},
	ProjectStatusStoryboard:    {ProjectStatusProduction, ProjectStatusScriptReview},
	ProjectStatusProduction:    {ProjectStatusComposing, ProjectStatusStoryboard},
	ProjectStatusComposing:     {ProjectStatusCompleted, ProjectStatusProduction},
	ProjectStatusCompleted:     {},
}

type Project struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title          string    `gorm:"type:varchar(255)" json:"title"`
	Logline        string    `gorm:"type:text" json:"logline"`
	WorldOutline   string    `gorm:"type:longtext" json:"worldOutline"`
	FullScript     string    `gorm:"type:longtext" json:"fullScript"`
	Status         string    `gorm:"type:varchar(50)" json:"status"`
	Mode           string    `gorm:"type:varchar(20);default:STANDARD" json:"mode"`
	StylePreset    string    `gorm:"type:varchar(50);default:default" json:"stylePreset"`
	FinalVideoPath string    `gorm:"type:varchar(1024)" json:"finalVideoPath"`
	DraftProgress  string    `gorm:"type:text" json:"draftProgress"` // opaque JSON snapshot for polling fallback
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Episodes []Episode `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"episodes,omitempty"`
	Scenes   []Scene   `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"scenes,omitempty"`
}

func (Project) TableName() string { return "projects" }

// ProjectCanTransition reports whether current → target is a legal
// project transition per the adjacency table.
func ProjectCanTransition(current, target string) bool {
	for _, t := range projectTransitions[current] {
		if t == target {
			return true
		}
	}
	return false
}

func (p *Project) CanTransition(target string) bool {
	return ProjectCanTransition(p.Status, target)
}

// IsRollback reports whether target sits earlier in the stage order
// than the project's current status.
func (p *Project) IsRollback(target string) bool {
	return stageIndex(projectStageOrder, target) < stageIndex(projectStageOrder, p.Status)
}

// TransitionTo validates and persists a status change. Callers must use
// this instead of writing Status directly.
func (p *Project) TransitionTo(db *gorm.DB, target string) error {
	if !p.CanTransition(target) {
		return &InvalidTransitionError{Entity: "project", ID: p.ID, From: p.Status, To: target}
	}
	if err := db.Model(p).Updates(map[string]interface{}{
		"status":     target,
		"updated_at": time.Now(),
	}).Error; err != nil {
		return err
	}
	p.Status = target
	return nil
}

func stageIndex(order []string, status string) int {
	for i, s := range order {
		if s == status {
			return i
		}
	}
	return -1
}

func GetProjectByID(db *gorm.DB, id string) (*Project, error) {
	var p Project
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

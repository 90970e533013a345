package models

import (
	"time"

	"gorm.io/gorm"
)

// Scene lifecycle statuses. REVIEW is the human-in-the-loop gate: video
// generation (the expensive step) is reachable only through an explicit
// approval that verified an image asset exists.
const (
	SceneStatusPending    = "PENDING"
	SceneStatusGenerating = "GENERATING"
	SceneStatusReview     = "REVIEW"
	SceneStatusApproved   = "APPROVED"
	SceneStatusVideoGen   = "VIDEO_GEN"
	SceneStatusReady      = "READY"
	SceneStatusError      = "ERROR"
)

// sceneTransitions: VIDEO_GEN is reachable only from APPROVED, and
// APPROVED only from REVIEW. ERROR is reachable from the in-flight
// states; leaving ERROR is an explicit human retry.
var sceneTransitions = map[string][]string{
	SceneStatusPending:    {SceneStatusGenerating},
	SceneStatusGenerating: {SceneStatusReview, SceneStatusError},
	SceneStatusReview:     {SceneStatusApproved, SceneStatusGenerating, SceneStatusPending},
	SceneStatusApproved:   {SceneStatusVideoGen, SceneStatusReview},
	SceneStatusVideoGen:   {SceneStatusReady, SceneStatusError},
	SceneStatusReady:      {SceneStatusReview},
	SceneStatusError:      {SceneStatusPending, SceneStatusGenerating},
}

type Scene struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProjectID      string    `gorm:"type:varchar(36);index" json:"projectId"`
	EpisodeID      *string   `gorm:"type:varchar(36);index" json:"episodeId,omitempty"`
	SequenceOrder  int       `gorm:"default:0" json:"sequenceOrder"`
	DialogueText   string    `gorm:"type:text" json:"dialogueText"`
	PromptVisual   string    `gorm:"type:text" json:"promptVisual"`
	PromptMotion   string    `gorm:"type:text" json:"promptMotion"`
	SfxText        string    `gorm:"type:text" json:"sfxText"`
	LocalAudioPath string    `gorm:"type:varchar(1024)" json:"localAudioPath"`
	LocalImagePath string    `gorm:"type:varchar(1024)" json:"localImagePath"`
	LocalVideoPath string    `gorm:"type:varchar(1024)" json:"localVideoPath"`
	AudioDuration  float64   `json:"audioDuration"`
	VideoDuration  float64   `json:"videoDuration"`
	Status         string    `gorm:"type:varchar(50)" json:"status"`
	ErrorMessage   string    `gorm:"type:varchar(512)" json:"errorMessage"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	AssetVersions []AssetVersion `gorm:"foreignKey:SceneID;constraint:OnDelete:CASCADE" json:"assetVersions,omitempty"`
}

func (Scene) TableName() string { return "scenes" }

func SceneCanTransition(current, target string) bool {
	for _, t := range sceneTransitions[current] {
		if t == target {
			return true
		}
	}
	return false
}

func (s *Scene) CanTransition(target string) bool {
	return SceneCanTransition(s.Status, target)
}

func (s *Scene) TransitionTo(db *gorm.DB, target string) error {
	if !s.CanTransition(target) {
		return &InvalidTransitionError{Entity: "scene", ID: s.ID, From: s.Status, To: target}
	}
	if err := db.Model(s).Updates(map[string]interface{}{
		"status":     target,
		"updated_at": time.Now(),
	}).Error; err != nil {
		return err
	}
	s.Status = target
	return nil
}

// MarkError moves the scene to ERROR with a truncated message. The raw
// error may contain provider payloads, so cap what we persist.
func (s *Scene) MarkError(db *gorm.DB, msg string) error {
	if len(msg) > 500 {
		msg = msg[:500]
	}
	if err := db.Model(s).Updates(map[string]interface{}{
		"status":        SceneStatusError,
		"error_message": msg,
		"updated_at":    time.Now(),
	}).Error; err != nil {
		return err
	}
	s.Status = SceneStatusError
	s.ErrorMessage = msg
	return nil
}

func (s *Scene) UpdateAudio(db *gorm.DB, path string, duration float64) error {
	return db.Model(s).Updates(map[string]interface{}{
		"local_audio_path": path,
		"audio_duration":   duration,
		"updated_at":       time.Now(),
	}).Error
}

func (s *Scene) UpdateImage(db *gorm.DB, path string) error {
	return db.Model(s).Updates(map[string]interface{}{
		"local_image_path": path,
		"updated_at":       time.Now(),
	}).Error
}

func (s *Scene) UpdateVideo(db *gorm.DB, path string, duration float64) error {
	return db.Model(s).Updates(map[string]interface{}{
		"local_video_path": path,
		"video_duration":   duration,
		"updated_at":       time.Now(),
	}).Error
}

func BatchCreateScenes(db *gorm.DB, scenes []Scene) error {
	if len(scenes) == 0 {
		return nil
	}
	return db.Create(&scenes).Error
}

func GetSceneByID(db *gorm.DB, id string) (*Scene, error) {
	var s Scene
	if err := db.First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func GetScenesByProjectID(db *gorm.DB, projectID string) ([]Scene, error) {
	var scenes []Scene
	err := db.Where("project_id = ?", projectID).Order("sequence_order ASC").Find(&scenes).Error
	return scenes, err
}

func GetScenesByEpisodeID(db *gorm.DB, episodeID string) ([]Scene, error) {
	var scenes []Scene
	err := db.Where("episode_id = ?", episodeID).Order("sequence_order ASC").Find(&scenes).Error
	return scenes, err
}

// CountScenesReviewable returns (total, at REVIEW or later) for a
// project — the aggregate check behind the "all scenes reviewable"
// notification.
func CountScenesReviewable(db *gorm.DB, projectID string) (int64, int64, error) {
	var total, reviewable int64
	if err := db.Model(&Scene{}).Where("project_id = ?", projectID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err := db.Model(&Scene{}).
		Where("project_id = ? AND status IN ?", projectID, []string{
			SceneStatusReview, SceneStatusApproved, SceneStatusVideoGen, SceneStatusReady,
		}).
		Count(&reviewable).Error
	return total, reviewable, err
}

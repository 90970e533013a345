package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	AssetTypeImage = "IMAGE"
	AssetTypeAudio = "AUDIO"
	AssetTypeVideo = "VIDEO"
)

// AssetVersion records every generated candidate for a scene asset so a
// generation can be audited or an earlier candidate re-selected.
type AssetVersion struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SceneID      string    `gorm:"type:varchar(36);index" json:"sceneId"`
	AssetType    string    `gorm:"type:varchar(20)" json:"assetType"`
	Version      int       `gorm:"default:1" json:"version"`
	LocalPath    string    `gorm:"type:varchar(1024)" json:"localPath"`
	PromptUsed   string    `gorm:"type:text" json:"promptUsed"`
	Provider     string    `gorm:"type:varchar(50)" json:"provider"`
	IsSelected   bool      `gorm:"default:true" json:"isSelected"`
	QualityScore float64   `json:"qualityScore"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (AssetVersion) TableName() string { return "asset_versions" }

// RecordAssetVersion appends a new version for a scene+type, deselecting
// prior versions so the newest is the selected one.
func RecordAssetVersion(db *gorm.DB, v *AssetVersion) error {
	var maxVersion int
	db.Model(&AssetVersion{}).
		Where("scene_id = ? AND asset_type = ?", v.SceneID, v.AssetType).
		Select("COALESCE(MAX(version), 0)").Scan(&maxVersion)
	v.Version = maxVersion + 1
	v.IsSelected = true

	if err := db.Model(&AssetVersion{}).
		Where("scene_id = ? AND asset_type = ?", v.SceneID, v.AssetType).
		Update("is_selected", false).Error; err != nil {
		return err
	}
	return db.Create(v).Error
}

// SelectAssetVersion flips the selected flag to the given version id.
func SelectAssetVersion(db *gorm.DB, sceneID, assetType, versionID string) error {
	if err := db.Model(&AssetVersion{}).
		Where("scene_id = ? AND asset_type = ?", sceneID, assetType).
		Update("is_selected", false).Error; err != nil {
		return err
	}
	return db.Model(&AssetVersion{}).
		Where("id = ?", versionID).
		Update("is_selected", true).Error
}

// ABOUTME: Schema for the google_config setting (Places API key, place ID, reviews toggle)
// ABOUTME: Carries an explicit version so older rows keep decoding

package settings

import "fmt"

// GoogleConfigKey is the admin_settings key holding GoogleConfig.
const GoogleConfigKey = "google_config"

// GoogleConfigVersion is the newest schema version this build understands.
const GoogleConfigVersion = 1

// GoogleConfig configures the Google Places reviews integration.
type GoogleConfig struct {
	Version        int    `json:"version,omitempty"`
	PlacesAPIKey   string `json:"places_api_key"`
	PlaceID        string `json:"place_id"`
	ReviewsEnabled bool   `json:"reviews_enabled"`
}

// SchemaVersion is the version c was written with. Rows written before
// versioning, and values built without one, are version 1.
func (c GoogleConfig) SchemaVersion() int {
	if c.Version == 0 {
		return 1
	}
	return c.Version
}

// Normalize rejects versions this build cannot read. Version is left as
// stored so Decode(Encode(c)) == c.
func (c *GoogleConfig) Normalize() error {
	if v := c.SchemaVersion(); v < 0 || v > GoogleConfigVersion {
		return fmt.Errorf("unsupported google_config version %d (max %d)", v, GoogleConfigVersion)
	}
	return nil
}

// StampVersion writes the effective version into the Version field.
func (c *GoogleConfig) StampVersion() {
	c.Version = c.SchemaVersion()
}

package advisory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rhymeas/tripweaver/internal/types"
)

// cleanJSONResponse strips markdown fences and surrounding prose so the
// payload can be unmarshalled strictly. Models occasionally wrap JSON in
// explanation even when asked not to.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	if strings.HasSuffix(response, "```") {
		response = strings.TrimSuffix(response, "```")
	}
	response = strings.TrimSpace(response)

	firstBrace := strings.Index(response, "{")
	if firstBrace == -1 {
		return response
	}
	lastBrace := strings.LastIndex(response, "}")
	if lastBrace == -1 || lastBrace <= firstBrace {
		return response
	}
	return strings.TrimSpace(response[firstBrace : lastBrace+1])
}

// parseJSON runs the cleaner and unmarshals into dst. Any failure is a
// schema violation, never propagated as a parse error to the pipeline.
func parseJSON(raw string, dst interface{}) error {
	clean := cleanJSONResponse(raw)
	if err := json.Unmarshal([]byte(clean), dst); err != nil {
		return fmt.Errorf("%w: %v", types.ErrSchemaViolation, err)
	}
	return nil
}

type strategyPayload struct {
	Days []struct {
		DayIndex   int      `json:"day_index"`
		Categories []string `json:"categories"`
	} `json:"days"`
	SearchRadiusKm float64  `json:"search_radius_km"`
	Tips           []string `json:"tips"`
}

type validationPayload struct {
	ApprovedIDs []string `json:"approved_ids"`
}

type gapFillPayload struct {
	Suggestions []struct {
		DayIndex    int     `json:"day_index"`
		Kind        string  `json:"kind"`
		Name        string  `json:"name"`
		Category    string  `json:"category"`
		Description string  `json:"description"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
	} `json:"suggestions"`
}

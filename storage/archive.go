package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dosada05/volleyball-tournament/models"
)

const archiveContentType = "application/json"

// FixtureArchive is the document written for every regeneration.
type FixtureArchive struct {
	Tournament *models.Tournament `json:"tournament"`
	Matches    []*models.Match    `json:"matches"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// FixtureArchiver stores the fixtures of a tournament as one JSON object per
// regeneration under archives/tournaments/<id>/.
type FixtureArchiver struct {
	uploader ObjectUploader
	now      func() time.Time
}

func NewFixtureArchiver(uploader ObjectUploader) *FixtureArchiver {
	return &FixtureArchiver{uploader: uploader, now: time.Now}
}

func ArchiveKey(tournamentID string, at time.Time) string {
	return fmt.Sprintf("archives/tournaments/%s/fixtures-%s.json", tournamentID, at.UTC().Format("20060102T150405.000Z"))
}

// ArchiveFixtures uploads the snapshot and returns its public URL, or its key
// when the bucket is private.
func (a *FixtureArchiver) ArchiveFixtures(ctx context.Context, tournament *models.Tournament, matches []*models.Match) (string, error) {
	at := a.now().UTC()
	body, err := json.Marshal(FixtureArchive{Tournament: tournament, Matches: matches, ArchivedAt: at})
	if err != nil {
		return "", fmt.Errorf("failed to encode fixture archive: %w", err)
	}

	key := ArchiveKey(tournament.ID, at)
	result, err := a.uploader.Upload(ctx, key, archiveContentType, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if result.Location != "" {
		return result.Location, nil
	}
	return result.Key, nil
}

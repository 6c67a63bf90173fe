package bundle

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/arena-labs/arena-go/internal/domain"
)

func TestCoopetitionArchiveLayout(t *testing.T) {
	downloadedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stats := CoopetitionStats{
		Phases: []PhaseStats{
			{
				Number: 1,
				Submissions: []domain.SubmissionStats{
					{
						Participant:      "ada",
						SubmissionID:     "sub-1",
						DownloadCount:    3,
						SubmissionNumber: 1,
						LikeCount:        2,
						DislikeCount:     1,
					},
				},
				ScoresCSV: []byte("submission,accuracy\nsub-1,0.9\n"),
			},
			{Number: 2},
		},
		Downloads: []domain.DownloadRecord{
			{SubmissionID: "sub-1", Owner: "ada", DownloadedBy: "bob", At: downloadedAt},
		},
		CurrentUser: "ada",
	}

	data, err := CoopetitionArchive(stats)
	if err != nil {
		t.Fatalf("build archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(content)
	}

	for _, name := range []string{
		"coopetition_phase_1.txt",
		"coopetition_phase_2.txt",
		"coopetition_scores_phase_1.txt",
		"coopetition_scores_phase_2.txt",
		"coopetition_downloads.txt",
		"current_user.txt",
	} {
		if _, ok := files[name]; !ok {
			t.Fatalf("missing archive entry %s, have %v", name, files)
		}
	}

	if !strings.Contains(files["coopetition_phase_1.txt"], "ada") {
		t.Fatalf("expected participant in phase stats: %s", files["coopetition_phase_1.txt"])
	}
	if !strings.Contains(files["coopetition_downloads.txt"], "bob") {
		t.Fatalf("expected downloader in downloads: %s", files["coopetition_downloads.txt"])
	}
	if files["current_user.txt"] != "ada" {
		t.Fatalf("current_user: got %q", files["current_user.txt"])
	}
}

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"church-checkin/internal/models"
)

func TestRenderDashboard(t *testing.T) {
	manila := time.FixedZone("PHT", 8*60*60)
	refreshedAt := time.Date(2026, 10, 18, 1, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		stats      *models.DashboardStats
		contains   []string
		notContain []string
	}{
		{
			name: "Day with attendees",
			stats: &models.DashboardStats{
				Date:            "2026-10-18",
				TotalIdentities: 40,
				TotalAttendance: 2,
				Ministries:      []models.Breakdown{{Name: "Music", Count: 2}},
				Networks:        []models.Breakdown{{Name: "Youth", Count: 2}},
				Attendees: []models.Attendee{
					{
						IdentityID: "id-1",
						Code:       "a",
						FirstName:  "Ana",
						LastName:   "Cruz",
						Ministry:   "Music",
						Network:    "Youth",
						RecordedAt: time.Date(2026, 10, 18, 1, 5, 0, 0, time.UTC),
					},
				},
				Page:       1,
				TotalPages: 1,
			},
			contains: []string{
				"Attendance 2026-10-18",
				"(refreshed 09:30:00)",
				"Present: 2 of 40 members",
				"MINISTRY", "NETWORK", "NAME",
				"Youth",
				"Ana Cruz",
				"09:05",
				"Page 1 of 1",
			},
		},
		{
			name: "Empty day",
			stats: &models.DashboardStats{
				Date:            "2026-10-18",
				TotalIdentities: 40,
				Ministries:      []models.Breakdown{},
				Networks:        []models.Breakdown{},
				Attendees:       []models.Attendee{},
				Page:            1,
				TotalPages:      1,
			},
			contains:   []string{"Present: 0 of 40 members", "Page 1 of 1"},
			notContain: []string{"MINISTRY", "NETWORK", "NAME"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			renderDashboard(&buf, tt.stats, refreshedAt, manila)
			out := buf.String()
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.notContain {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestHashSecretCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr bool
	}{
		{name: "From argument", args: []string{"s3cret"}},
		{name: "From stdin", args: []string{}, stdin: "s3cret\n"},
		{name: "Empty stdin", args: []string{}, stdin: "\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := hashSecretCommand()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetIn(strings.NewReader(tt.stdin))
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			hash := strings.TrimSpace(out.String())
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
		})
	}
}

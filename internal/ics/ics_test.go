package ics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	start := time.Date(2026, 10, 20, 14, 0, 0, 0, time.UTC)
	data, err := Build(Invite{
		UID:            "VCP-ABCD1234@fieldbooking",
		Start:          start,
		End:            start.Add(90 * time.Minute),
		Title:          "Visual Craft – Session",
		Description:    "Confirmation VCP-ABCD1234",
		Location:       "1 Main St",
		OrganizerName:  "Visual Craft",
		OrganizerEmail: "studio@example.com",
	})
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "VCP-ABCD1234@fieldbooking", ev.Id())
	gotStart, err := ev.GetStartAt()
	require.NoError(t, err)
	assert.True(t, gotStart.Equal(start))
	gotEnd, err := ev.GetEndAt()
	require.NoError(t, err)
	assert.True(t, gotEnd.Equal(start.Add(90*time.Minute)))
	assert.Equal(t, "Visual Craft – Session", ev.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "1 Main St", ev.GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Contains(t, string(data), "METHOD:REQUEST")
	assert.Contains(t, string(data), "mailto:studio@example.com")
}

func TestBuild_FormatErrors(t *testing.T) {
	start := time.Date(2026, 10, 20, 14, 0, 0, 0, time.UTC)
	valid := Invite{UID: "x", Start: start, End: start.Add(time.Hour), Title: "Session"}

	testCases := []struct {
		name  string
		edit  func(*Invite)
		field string
	}{
		{"missing uid", func(i *Invite) { i.UID = "" }, "uid"},
		{"missing start", func(i *Invite) { i.Start = time.Time{} }, "start"},
		{"end before start", func(i *Invite) { i.End = start.Add(-time.Hour) }, "end"},
		{"missing title", func(i *Invite) { i.Title = " " }, "title"},
		{"bad organizer", func(i *Invite) { i.OrganizerEmail = "not-an-email" }, "organizer"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv := valid
			tc.edit(&inv)
			_, err := Build(inv)
			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tc.field, fe.Field)
		})
	}
}

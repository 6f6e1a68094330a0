package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalendarPatchScriptParameters(t *testing.T) {
	script := CalendarPatchScript(30, true)

	assert.Contains(t, script, "var daysLimit = 30;")
	assert.Contains(t, script, "var autoSubmit = true;")
	assert.Contains(t, script, "populateCalendar")
}

func TestCalendarPatchScriptGuardsAgainstDoubleInjection(t *testing.T) {
	script := CalendarPatchScript(7, false)

	// The guard flag must be checked before it is set.
	checkIdx := strings.Index(script, "if (window."+calendarPatchGuard+") return;")
	setIdx := strings.Index(script, "window."+calendarPatchGuard+" = true;")
	assert.Greater(t, checkIdx, 0)
	assert.Greater(t, setIdx, checkIdx)
}

func TestCalendarPatchScriptFiltersAndPicksEarliest(t *testing.T) {
	script := CalendarPatchScript(30, false)

	assert.Contains(t, script, "limitDate.setDate(limitDate.getDate() + daysLimit);")
	assert.Contains(t, script, "dt >= today && dt <= limitDate")
	assert.Contains(t, script, "filtered.sort")
}

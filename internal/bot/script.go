package bot

import "fmt"

// calendarPatchGuard is the page-global flag that keeps the patch from being
// installed twice in one session.
const calendarPatchGuard = "__visabot_schedule_limit_v2__"

// CalendarPatchScript renders the page-injected payload that wraps the
// site's own populateCalendar callback. The wrapped version filters the
// candidate dates to [now, now+daysLimit], auto-selects the earliest
// surviving date and its first time slot, and, when autoSubmit is set,
// clicks the booking submit control itself.
func CalendarPatchScript(daysLimit int, autoSubmit bool) string {
	return fmt.Sprintf(`
(function () {
  var daysLimit = %d;
  var autoSubmit = %t;

  if (window.%s) return;
  window.%s = true;

  function fmtDate(d, df) {
    if (window.moment) return moment(d).format(df);
    try {
      var dd = new Date(d);
      return (dd.getMonth()+1).toString().padStart(2,'0') + '/' +
             dd.getDate().toString().padStart(2,'0') + '/' +
             dd.getFullYear();
    } catch(e) { return String(d); }
  }

  var origPopulate = window.populateCalendar;
  if (typeof origPopulate !== "function") return;

  window.populateCalendar = function(data) {
    var today = new Date();
    var limitDate = new Date();
    limitDate.setDate(limitDate.getDate() + daysLimit);

    var filtered = (Array.isArray(data) ? data : []).filter(function(item) {
      var dt = new Date(item.Date);
      return dt >= today && dt <= limitDate;
    });

    console.log("Filtered to", filtered.length, "open dates within", daysLimit, "days.");

    window.__availableDays = filtered;

    origPopulate.call(this, filtered);

    if (filtered.length > 0) {
      var earliest = filtered.sort(function(a,b) {
        return new Date(a.Date) - new Date(b.Date);
      })[0];

      jsdata.scheduleDayId = earliest.ID;
      jsdata.Token = window.sd;
      jsdata.Date = earliest.Date;

      getScheduleEntries(function (entries) {
        var df = (typeof getDateFormat === 'function') ? getDateFormat() : 'MM/DD/YYYY';
        var formattedDate = fmtDate(earliest.Date, df);

        var tableHtml = '<thead><tr><th>Date (' + df + ')</th><th>Time</th><th>Availability</th></tr></thead><tbody>';
        for (var j = 0; j < entries.length; j++) {
          var id = entries[j].Num;
          var time = entries[j].Time;
          var slots = entries[j].EntriesAvailable;
          tableHtml += '<tr>'
            + '<td><div class="radio"><label>'
            + '<input type="radio" id="' + id + '" name="schedule-entries" value="' + id + '" data-slots="' + slots + '" onclick="onSelectScheduleEntry(this)">' + formattedDate
            + '</label></div></td>'
            + '<td><div>' + time + '</div></td>'
            + '<td><div>' + slots + '</div></td>'
            + '</tr>';
        }
        tableHtml += '</tbody>';
        $("#time_select").html(tableHtml);
        $("#datepicker-message").text("");
        $("#datepicker-input").val(formattedDate);

        var firstRadio = document.querySelector("#time_select input[type='radio']");
        if (firstRadio) {
          firstRadio.checked = true;
          firstRadio.click();
          console.log("Auto-selected:", formattedDate, firstRadio.value);

          if (autoSubmit) {
            console.log("Auto-submitting...");
            var submitBtn = document.getElementById("submitbtn");
            if (submitBtn) submitBtn.click();
          }
        }
      });
    } else {
      console.warn("No open dates within limit.");
    }
  };
})();
`, daysLimit, autoSubmit, calendarPatchGuard, calendarPatchGuard)
}

// captchaExtractScript re-renders the CAPTCHA image through a canvas and
// returns it as a data URL, which survives even when the image src is an
// opaque blob.
const captchaExtractScript = `
(() => {
  const img = document.querySelector('#captchaImage');
  const canvas = document.createElement('canvas');
  canvas.width = img.naturalWidth;
  canvas.height = img.naturalHeight;
  const ctx = canvas.getContext('2d');
  ctx.drawImage(img, 0, 0);
  return canvas.toDataURL();
})()
`

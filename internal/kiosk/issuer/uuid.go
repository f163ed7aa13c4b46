package issuer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Namespace for deterministic ticket ids. Changing it would orphan every
// ticket already issued against the server, so treat it as frozen.
var ticketNamespace = uuid.MustParse("1b671a64-40d5-491e-99b0-da01ff1f3341")

// TicketUUID derives the ticket id for (user, meal, day). For regular
// codes the name is stable, so re-issuing the same code on the same day
// always produces the same id — that determinism is what duplicate
// detection and safe re-sync rely on. Override codes get the current
// millisecond appended, deliberately defeating idempotence so repeats are
// possible.
func TicketUUID(userID, mealID int64, now time.Time, override bool) string {
	name := fmt.Sprintf("%d-%d-%s", userID, mealID, now.Format("20060102"))
	if override {
		name = fmt.Sprintf("%s-%d", name, now.UnixMilli())
	}
	return uuid.NewSHA1(ticketNamespace, []byte(name)).String()
}

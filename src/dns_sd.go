package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Announce the result stream over TCP using DNS-SD.
 *
 * Description:
 *
 *     Bedside displays and logging tablets would rather pick a monitor
 *     from a list than have someone type in an address and port.
 *
 *     This uses the pure-Go github.com/brutella/dnssd package, so no
 *     system daemon is needed.
 */

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNS_SD_SERVICE = "_heartwolf._tcp"

/* Default service name to publish: "Heartwolf on <hostname>", or just
 * "Heartwolf" if the hostname cannot be obtained.
 */
func DNSSDDefaultName() string {
	var hostname, err = os.Hostname()
	if err != nil {
		return "Heartwolf"
	}

	// On some systems an FQDN is returned; remove the domain part.
	hostname, _, _ = strings.Cut(hostname, ".")

	return "Heartwolf on " + hostname
}

/*-------------------------------------------------------------------
 *
 * Name:        AnnounceResults
 *
 * Purpose:     Publish the service and answer queries until ctx ends.
 *
 * Inputs:	name	- Instance name.  Empty for DNSSDDefaultName.
 *
 *		port	- TCP port of the result server.
 *
 * Returns:	Only after ctx is done or the responder fails.
 *
 *--------------------------------------------------------------------*/

func AnnounceResults(ctx context.Context, name string, port int, logger *log.Logger) error {
	if logger == nil {
		logger = quietLogger()
	}
	if name == "" {
		name = DNSSDDefaultName()
	}

	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNS_SD_SERVICE,
		Port: port,
	}

	var sv, svErr = dnssd.NewService(cfg)
	if svErr != nil {
		return fmt.Errorf("DNS-SD: create service: %w", svErr)
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		return fmt.Errorf("DNS-SD: create responder: %w", rpErr)
	}

	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("DNS-SD: add service: %w", err)
	}

	logger.Info("DNS-SD: announcing results", "port", port, "name", name)

	var err = rp.Respond(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("DNS-SD: responder: %w", err)
}

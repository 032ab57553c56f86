// guest-token emite o token de acesso de um convidado.
//
//	GUEST_TOKEN_SECRET=... guest-token -event xv-maria -guest g123
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/internal/config"
	"github.com/fm-dev-mx/celebra-me-sub001/middleware/guestauth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	var (
		event   = flag.String("event", "", "event slug")
		guest   = flag.String("guest", "", "guest id")
		ttl     = flag.Duration("ttl", cfg.GuestAuth.TTL, "token lifetime (0 = no expiry)")
		baseURL = flag.String("base-url", "", "print the invitation link on this base URL")
	)
	flag.Parse()

	if strings.TrimSpace(*event) == "" || strings.TrimSpace(*guest) == "" {
		fmt.Fprintln(os.Stderr, "-event and -guest are required")
		flag.Usage()
		os.Exit(2)
	}

	p := guestauth.Payload{EventSlug: *event, GuestID: *guest}
	if *ttl > 0 {
		p = p.WithTTL(time.Now(), *ttl)
	}

	tok, err := guestauth.Codec{}.Issue(p, cfg.GuestAuth.Secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}

	if exp := p.ExpiresAt(); !exp.IsZero() {
		fmt.Fprintf(os.Stderr, "expires at %s\n", exp.UTC().Format(time.RFC3339))
	}

	if *baseURL == "" {
		fmt.Println(tok)
		return
	}
	link := strings.TrimSuffix(*baseURL, "/") + "/invitations/" + url.PathEscape(*event) + "?token=" + url.QueryEscape(tok)
	fmt.Println(link)
}

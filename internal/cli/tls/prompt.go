package tls

import (
	"bufio"
	"crypto/x509"
	"fmt"
	"io"
	"strings"
)

// Prompter asks the user whether to trust an unknown certificate.
type Prompter struct {
	In        io.Reader
	Out       io.Writer
	AssumeYes bool
}

// AcceptCertificate shows the certificate details and returns the answer.
// With AssumeYes it accepts without reading input.
func (p *Prompter) AcceptCertificate(host string, cert *x509.Certificate) bool {
	fmt.Fprintf(p.Out, "\nWARNING: Unknown TLS certificate\n")
	fmt.Fprintf(p.Out, "  Host:        %s\n", host)
	fmt.Fprintf(p.Out, "  Subject:     %s\n", cert.Subject)
	fmt.Fprintf(p.Out, "  Issuer:      %s\n", cert.Issuer)
	fmt.Fprintf(p.Out, "  Valid From:  %s\n", cert.NotBefore)
	fmt.Fprintf(p.Out, "  Valid Until: %s\n", cert.NotAfter)
	fmt.Fprintf(p.Out, "  Fingerprint: %s\n\n", ComputeFingerprint(cert))

	if p.AssumeYes {
		fmt.Fprintf(p.Out, "Automatically accepting certificate (--assumeyes flag is set)\n")
		return true
	}

	return p.yesNo("Do you want to accept this certificate?")
}

func (p *Prompter) yesNo(question string) bool {
	reader := bufio.NewReader(p.In)
	for {
		fmt.Fprintf(p.Out, "%s (yes/no): ", question)
		response, err := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(response)) {
		case "yes", "y":
			return true
		case "no", "n":
			return false
		}
		if err != nil {
			return false
		}
		fmt.Fprintf(p.Out, "Please answer 'yes' or 'no'\n")
	}
}

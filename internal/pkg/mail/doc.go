// Package mail sends email. SMTP is the only provider.
package mail

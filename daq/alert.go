// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	mail "gopkg.in/gomail.v2"
)

// Alerter notifies operators that the readout stopped.
type Alerter interface {
	Alert(subject, body string) error
}

// MailAlerter sends alerts by mail.
type MailAlerter struct {
	Usr     string
	Pwd     string
	Server  string
	Port    int
	Targets []string

	send func(d *mail.Dialer, msgs ...*mail.Message) error
}

// MailAlerterFromEnv returns a mail alerter configured from the
// MAIL_USERNAME, MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS
// environment variables.
func MailAlerterFromEnv() *MailAlerter {
	var tgts []string
	for _, tgt := range strings.Split(os.Getenv("MAIL_TGTS"), ",") {
		tgt = strings.TrimSpace(tgt)
		if tgt == "" {
			continue
		}
		tgts = append(tgts, tgt)
	}

	port, err := strconv.Atoi(os.Getenv("MAIL_PORT"))
	if err != nil {
		port = 0
	}

	return &MailAlerter{
		Usr:     os.Getenv("MAIL_USERNAME"),
		Pwd:     os.Getenv("MAIL_PASSWORD"),
		Server:  os.Getenv("MAIL_SERVER"),
		Port:    port,
		Targets: tgts,
	}
}

// Alert mails subject and body to the alert targets.
func (m *MailAlerter) Alert(subject, body string) error {
	if m.Usr == "" || m.Pwd == "" || m.Server == "" || m.Port == 0 || len(m.Targets) == 0 {
		return fmt.Errorf("daq: could not send mail alert: missing credentials")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.Usr)
	msg.SetHeader("Bcc", m.Targets...)
	msg.SetHeader("Subject", "[tdc-daemon] "+subject)
	msg.SetBody("text/plain", body)

	dial := mail.NewDialer(m.Server, m.Port, m.Usr, m.Pwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}

	send := m.send
	if send == nil {
		send = (*mail.Dialer).DialAndSend
	}
	err := send(dial, msg)
	if err != nil {
		return fmt.Errorf("daq: could not send mail alert: %w", err)
	}
	return nil
}

var _ Alerter = (*MailAlerter)(nil)

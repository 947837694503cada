package mail

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTP — минимальный SMTP-сервер для одного письма.
func fakeSMTP(t *testing.T) (addr string, received <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)

		tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch cmd {
			case "EHLO", "HELO":
				tp.PrintfLine("250 localhost")
			case "MAIL", "RCPT", "NOOP", "RSET":
				tp.PrintfLine("250 OK")
			case "DATA":
				tp.PrintfLine("354 go ahead")
				lines, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				out <- strings.Join(lines, "\n")
				tp.PrintfLine("250 queued")
			case "QUIT":
				tp.PrintfLine("221 bye")
				return
			default:
				tp.PrintfLine("502 not implemented")
			}
		}
	}()

	return ln.Addr().String(), out
}

func TestSMTPTransport_Send(t *testing.T) {
	addr, received := fakeSMTP(t)

	tr, err := NewSMTPTransport(SMTPConfig{Addr: addr, From: "noreply@shop.test", Timeout: 5 * time.Second})
	require.NoError(t, err)

	err = tr.Send(context.Background(), Message{To: "member@shop.test", Subject: "Sale", Body: "50% off"})
	require.NoError(t, err)

	select {
	case body := <-received:
		assert.Contains(t, body, "Subject: Sale")
		assert.Contains(t, body, "To: <member@shop.test>")
		assert.Contains(t, body, "50% off")
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestSMTPTransport_Timeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Сервер принимает соединение и молчит.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second)
	}()

	tr, err := NewSMTPTransport(SMTPConfig{Addr: ln.Addr().String(), From: "noreply@shop.test", Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	err = tr.Send(context.Background(), Message{To: "member@shop.test"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSMTPTransport_SubjectCannotInjectHeaders(t *testing.T) {
	addr, received := fakeSMTP(t)

	tr, err := NewSMTPTransport(SMTPConfig{Addr: addr, From: "noreply@shop.test", Timeout: 5 * time.Second})
	require.NoError(t, err)

	err = tr.Send(context.Background(), Message{
		To:      "member@shop.test",
		Subject: "Sale\r\nBcc: victim@evil.test",
		Body:    "50% off",
	})
	require.NoError(t, err)

	select {
	case body := <-received:
		for _, line := range strings.Split(body, "\n") {
			assert.False(t, strings.HasPrefix(line, "Bcc:"), "injected header: %q", line)
		}
		assert.Contains(t, body, "Subject: =?UTF-8?q?Sale")
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestSMTPTransport_NonASCIISubjectIsEncoded(t *testing.T) {
	addr, received := fakeSMTP(t)

	tr, err := NewSMTPTransport(SMTPConfig{Addr: addr, From: "noreply@shop.test", Timeout: 5 * time.Second})
	require.NoError(t, err)

	err = tr.Send(context.Background(), Message{To: "member@shop.test", Subject: "Скидка 50%", Body: "50% off"})
	require.NoError(t, err)

	select {
	case body := <-received:
		assert.Contains(t, body, "Subject: =?UTF-8?q?")
		assert.NotContains(t, body, "Скидка")
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestSMTPTransport_RecipientWithCRLFRejected(t *testing.T) {
	tr, err := NewSMTPTransport(SMTPConfig{Addr: "127.0.0.1:25", From: "noreply@shop.test"})
	require.NoError(t, err)

	err = tr.Send(context.Background(), Message{To: "member@shop.test\r\nBcc: victim@evil.test"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecipient)
}

func TestSMTPTransport_NoRecipient(t *testing.T) {
	tr, err := NewSMTPTransport(SMTPConfig{Addr: "127.0.0.1:25"})
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Send(context.Background(), Message{To: "  "}), ErrNoRecipient)
}

func TestNewSMTPTransport_BadAddr(t *testing.T) {
	_, err := NewSMTPTransport(SMTPConfig{Addr: "no-port"})
	assert.Error(t, err)
}

func TestLogTransport(t *testing.T) {
	tr := &LogTransport{}
	assert.NoError(t, tr.Send(context.Background(), Message{To: "a@b.c"}))
	assert.ErrorIs(t, tr.Send(context.Background(), Message{}), ErrNoRecipient)
}

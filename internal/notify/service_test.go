package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/pkg/logger"
)

type captureSender struct {
	sent []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m...)
	return nil
}

func TestAlertNotifier(t *testing.T) {
	sender := &captureSender{}
	n := NewAlertNotifier(NewMailerWithSender(sender, "alerts@example.org"), []string{"team@example.org"}, logger.Nop())

	err := n.NotifyRedAlert(context.Background(), &model.Report{
		ReportID:     "R1",
		PatientID:    "P001",
		PatientName:  "Test",
		OverallScore: 8,
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"team@example.org"}, msg.GetHeader("To"))
	assert.Contains(t, msg.GetHeader("Subject")[0], "P001")

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Report:  R1")
}

func TestMailerErrors(t *testing.T) {
	m := NewMailerWithSender(&captureSender{err: errors.New("dial tcp: refused")}, "a@b")
	assert.Error(t, m.SendCustom(context.Background(), []string{"x@y"}, "s", "c"))
	assert.NoError(t, m.SendCustom(context.Background(), nil, "s", "c"), "no recipients is a no-op")
}

package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	to     string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from, to string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, to: to, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, artifactName string, frameCount int, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	msg := n.message(artifactName, frameCount, errorMsg)

	err := smtp.SendMail(addr, nil, n.from, []string{n.to}, msg)
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", n.to),
			zap.String("artifact", artifactName),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", n.to),
		zap.String("artifact", artifactName),
	)
	return nil
}

func (n *SMTPNotifier) message(artifactName string, frameCount int, errorMsg string) []byte {
	subject := fmt.Sprintf("Time-lapse assembly failed [%s]", artifactName)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"A time-lapse video could not be assembled. Its frames were kept on disk.\r\n\r\n"+
			"Video: %s\r\n"+
			"Frames: %d\r\n"+
			"Error: %s\r\n\r\n"+
			"-- Time-lapse Recorder",
		artifactName, frameCount, errorMsg,
	)

	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, n.to, subject, body,
	))
}

package logging

import "github.com/sirupsen/logrus"

// SessionFields identifies one connection in log entries.
func SessionFields(sessionID, remoteAddr string) logrus.Fields {
	return logrus.Fields{
		"session_id": sessionID,
		"remote":     remoteAddr,
	}
}

// CommandFields describes a command invocation.
func CommandFields(user, name, args string) logrus.Fields {
	return logrus.Fields{
		"user":    user,
		"command": name,
		"args":    args,
	}
}

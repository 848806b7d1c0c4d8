package publish

import (
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// authFor picks credentials for a remote URL. SSH remotes use the SSH agent;
// HTTPS remotes use GIT_USERNAME/GIT_PASSWORD or GITHUB_TOKEN. Local paths
// need none.
func authFor(url string) transport.AuthMethod {
	if isSSHURL(url) {
		if strings.TrimSpace(os.Getenv("SSH_AUTH_SOCK")) == "" {
			return nil
		}
		auth, err := ssh.NewSSHAgentAuth("git")
		if err != nil {
			logDebug("[publish] SSH agent auth failed: %v", err)
			return nil
		}
		return auth
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return nil
	}

	username := os.Getenv("GIT_USERNAME")
	password := os.Getenv("GIT_PASSWORD")
	if username == "" {
		// A GitHub token works as the username with an empty password.
		username = os.Getenv("GITHUB_TOKEN")
		password = ""
	}
	if username == "" {
		return nil
	}
	return &http.BasicAuth{Username: username, Password: password}
}

func isSSHURL(url string) bool {
	return strings.HasPrefix(url, "git@") ||
		strings.HasPrefix(url, "ssh://") ||
		strings.HasPrefix(url, "git+ssh://")
}

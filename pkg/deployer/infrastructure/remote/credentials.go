package remote

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// LoadPrivateKey reads and parses the private key for a remote target.
// Both "pem" and "ppk" declarations are fed through the PEM parser; any other
// key type is a configuration error, reported before a connection is tried.
func LoadPrivateKey(keyType, path string) (ssh.Signer, error) {
	switch strings.ToLower(keyType) {
	case "pem", "ppk":
	default:
		return nil, errors.Errorf("unsupported key type %q, use \"pem\" or \"ppk\"", keyType)
	}
	keyBody, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read private key %v", path)
	}
	signer, err := ssh.ParsePrivateKey(keyBody)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse private key %v", path)
	}
	return signer, nil
}

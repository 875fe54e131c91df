package validation

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

type commandResolver struct {
	command []string
}

// NewCommandResolver wraps the studio's package resolution CLI.
//
// The command is invoked with the package requests appended, plus
// "--output <rxtPath>" when a resolve context is wanted. A non-zero
// exit is a failed resolution, with the combined output as the reason.
func NewCommandResolver(command ...string) (Resolver, error) {
	if len(command) == 0 {
		return nil, xerrors.New("the resolver command is empty")
	}
	return &commandResolver{command: command}, nil
}

func (r *commandResolver) Resolve(ctx context.Context, requests []string, rxtPath string) (Resolution, error) {
	args := append([]string{}, r.command[1:]...)
	args = append(args, requests...)
	if rxtPath != "" {
		args = append(args, "--output", rxtPath)
	}

	output, err := exec.CommandContext(ctx, r.command[0], args...).CombinedOutput()
	detail := strings.TrimSpace(string(output))
	if err != nil {
		exitErr := &exec.ExitError{}
		if errors.As(err, &exitErr) {
			return Resolution{Success: false, Detail: detail}, nil
		}
		return Resolution{}, xerrors.WrapWithNote("unable to run the resolver", err)
	}
	return Resolution{Success: true, Detail: detail}, nil
}

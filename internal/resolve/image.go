package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/distribution/reference"

	"github.com/cmmoran/swarmup/internal/render"
	"github.com/cmmoran/swarmup/internal/swarm"
)

var (
	ErrMalformedImageReference = errors.New("malformed image reference")
	ErrNoRepoDigest            = errors.New("image has no repo digest")
)

// ImageRef is a running image reference split into its parts.
type ImageRef struct {
	Repository string
	Tag        string
	// Digest is empty when the reference carries none.
	Digest string
}

// ParseImageRef splits "repo:tag[@digest]". The repository keeps its registry
// host and port; a reference without a tag is malformed.
func ParseImageRef(s string) (ImageRef, error) {
	ref, err := reference.Parse(s)
	if err != nil {
		return ImageRef{}, fmt.Errorf("%w %q: %w", ErrMalformedImageReference, s, err)
	}
	named, ok := ref.(reference.Named)
	if !ok {
		return ImageRef{}, fmt.Errorf("%w %q: no repository", ErrMalformedImageReference, s)
	}
	tagged, ok := ref.(reference.Tagged)
	if !ok {
		return ImageRef{}, fmt.Errorf("%w %q: no tag", ErrMalformedImageReference, s)
	}
	out := ImageRef{Repository: named.Name(), Tag: tagged.Tag()}
	if d, ok := ref.(reference.Digested); ok {
		out.Digest = d.Digest().String()
	}
	return out, nil
}

// ImageComparison is the running digest against the freshly pulled one.
type ImageComparison struct {
	Current        string `json:"current"`
	Repository     string `json:"repository"`
	Tag            string `json:"tag"`
	LocalDigest    string `json:"localDigest"`
	RegistryDigest string `json:"registryDigest"`
	UpdateRef      string `json:"updateRef"`
}

// NeedsUpdate is true whenever the digests differ, including when the running
// reference has no digest at all.
func (c ImageComparison) NeedsUpdate() bool {
	return c.LocalDigest != c.RegistryDigest
}

// RegistryAuth yields the X-Registry-Auth payload for a repository, or "".
type RegistryAuth interface {
	EncodedAuth(repository string) (string, error)
}

type ImageChecker struct {
	cli    swarm.Client
	auth   RegistryAuth
	engine *render.Engine
	pin    bool
}

func NewImageChecker(cli swarm.Client, auth RegistryAuth, engine *render.Engine, pin bool) *ImageChecker {
	return &ImageChecker{cli: cli, auth: auth, engine: engine, pin: pin}
}

// Check pulls the tag the service runs and compares digests.
func (c *ImageChecker) Check(ctx context.Context, current string) (ImageComparison, error) {
	ref, err := ParseImageRef(current)
	if err != nil {
		return ImageComparison{}, err
	}
	cmp := ImageComparison{
		Current:     current,
		Repository:  ref.Repository,
		Tag:         ref.Tag,
		LocalDigest: ref.Digest,
	}
	tagged := ref.Repository + ":" + ref.Tag

	var encoded string
	if c.auth != nil {
		if encoded, err = c.auth.EncodedAuth(ref.Repository); err != nil {
			return cmp, fmt.Errorf("registry auth for %q: %w", ref.Repository, err)
		}
	}
	if err := c.cli.PullImage(ctx, tagged, encoded); err != nil {
		return cmp, err
	}

	digests, err := c.cli.ImageRepoDigests(ctx, tagged)
	if err != nil {
		return cmp, err
	}
	repo, digest, err := pickRepoDigest(digests, ref.Repository)
	if err != nil {
		return cmp, fmt.Errorf("%s: %w", tagged, err)
	}
	cmp.RegistryDigest = digest

	cmp.UpdateRef, err = c.engine.ImageRef(render.ImageData{
		Current:    current,
		Repository: repo,
		Tag:        ref.Tag,
		Digest:     digest,
		Pin:        c.pin,
	})
	if err != nil {
		return cmp, fmt.Errorf("render image reference: %w", err)
	}
	return cmp, nil
}

// pickRepoDigest prefers the entry for repository and otherwise takes the
// first one. Repo digests are per repository, not per tag.
func pickRepoDigest(digests []string, repository string) (string, string, error) {
	if len(digests) == 0 {
		return "", "", ErrNoRepoDigest
	}
	chosen := digests[0]
	for _, d := range digests {
		if name, _, ok := strings.Cut(d, "@"); ok && name == repository {
			chosen = d
			break
		}
	}
	name, digest, ok := strings.Cut(chosen, "@")
	if !ok || digest == "" {
		return "", "", fmt.Errorf("%w: unexpected entry %q", ErrNoRepoDigest, chosen)
	}
	return name, digest, nil
}

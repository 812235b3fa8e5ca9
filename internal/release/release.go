// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package release downloads compiled FPGA images and their ledgers from
// GitHub releases.
package release

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v34/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// Default release location.
const (
	DefaultOwner = "f-secure-foundry"
	DefaultRepo  = "armory-keyrom-gateware"
)

// Asset name suffixes, prefixed by the release tag.
const (
	ImageSuffix  = ".bin"
	LedgerSuffix = ".ledger"
)

// NewClient returns a GitHub client, authenticated when a token is given.
func NewClient(ctx context.Context, token string) *github.Client {
	if len(token) == 0 {
		return github.NewClient(nil)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// Assets represents the artifacts of a gateware release.
type Assets struct {
	Tag    string
	Image  []byte
	Ledger []byte
}

// Fetcher downloads release assets.
type Fetcher struct {
	Client *github.Client
	Owner  string
	Repo   string

	// asset download client, defaults to http.DefaultClient
	HTTPClient *http.Client
	// defaults to the standard logger
	Log logrus.FieldLogger
}

func (f *Fetcher) log() logrus.FieldLogger {
	if f.Log == nil {
		return logrus.StandardLogger()
	}

	return f.Log
}

// Fetch downloads the image and ledger of the argument release tag, or of
// the latest release when version is "latest".
func (f *Fetcher) Fetch(ctx context.Context, version string) (a *Assets, err error) {
	var release *github.RepositoryRelease

	if version == "latest" {
		release, _, err = f.Client.Repositories.GetLatestRelease(ctx, f.Owner, f.Repo)
	} else {
		release, _, err = f.Client.Repositories.GetReleaseByTag(ctx, f.Owner, f.Repo, version)
	}

	if err != nil {
		return
	}

	a = &Assets{Tag: release.GetTagName()}

	var image, ledger *github.ReleaseAsset

	for _, asset := range release.Assets {
		switch asset.GetName() {
		case a.Tag + ImageSuffix:
			image = asset
		case a.Tag + LedgerSuffix:
			ledger = asset
		}
	}

	if image == nil {
		return nil, fmt.Errorf("could not find %s image for github.com/%s/%s", version, f.Owner, f.Repo)
	}

	if ledger == nil {
		return nil, fmt.Errorf("could not find %s ledger for github.com/%s/%s", version, f.Owner, f.Repo)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		a.Image, err = f.download(ctx, "image", release, image)
		return
	})

	g.Go(func() (err error) {
		a.Ledger, err = f.download(ctx, "ledger", release, ledger)
		return
	})

	if err = g.Wait(); err != nil {
		return nil, err
	}

	return
}

func (f *Fetcher) download(ctx context.Context, tag string, release *github.RepositoryRelease, asset *github.ReleaseAsset) ([]byte, error) {
	f.log().WithFields(logrus.Fields{
		"tag":    release.GetTagName(),
		"author": asset.GetUploader().GetLogin(),
		"date":   asset.GetCreatedAt(),
		"link":   release.GetHTMLURL(),
		"url":    asset.GetBrowserDownloadURL(),
	}).Infof("downloading %s %s (%d bytes)", tag, asset.GetName(), asset.GetSize())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.GetBrowserDownloadURL(), nil)

	if err != nil {
		return nil, err
	}

	client := f.HTTPClient

	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)

	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not download %s, %s", asset.GetName(), res.Status)
	}

	return io.ReadAll(res.Body)
}

package cookbook

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// EditionFileReason and EditionFileReScript are the expected file names
	// of the two editions inside a corpus directory.
	EditionFileReason   = "reason.md"
	EditionFileReScript = "rescript.md"

	corpusRepoOwner = "bindbook"
	corpusRepoName  = "binding-cookbook"
)

// ReleaseAPI is the GitHub API endpoint queried for the latest corpus
// release. Overridable for tests.
var ReleaseAPI = fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", corpusRepoOwner, corpusRepoName)

// EnsureCorpus checks that both edition files exist under dir. If either is
// missing it discovers the latest corpus release, downloads the archive and
// extracts the Markdown editions into dir.
func EnsureCorpus(ctx context.Context, dir string) error {
	missing := false
	for _, name := range []string{EditionFileReason, EditionFileReScript} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			missing = true
		}
	}
	if !missing {
		return nil
	}

	downloadURL, err := latestCorpusAssetURL(ctx)
	if err != nil {
		return fmt.Errorf("find latest corpus release: %w", err)
	}
	return downloadAndExtract(ctx, downloadURL, dir)
}

func latestCorpusAssetURL(ctx context.Context) (string, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, "GET", ReleaseAPI, nil)
	if err != nil {
		return "", err
	}
	// GitHub API requires a User-Agent.
	req.Header.Set("User-Agent", "bindbook-cli")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github api returned status: %s", resp.Status)
	}

	var release struct {
		Assets []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", err
	}

	for _, asset := range release.Assets {
		if strings.Contains(asset.Name, "cookbook") &&
			(strings.HasSuffix(asset.Name, ".tar.gz") || strings.HasSuffix(asset.Name, ".tgz")) {
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", fmt.Errorf("no cookbook archive found in latest release")
}

// downloadAndExtract streams the tar.gz archive and writes every Markdown
// file it contains into dir, flattening any directory prefix.
func downloadAndExtract(ctx context.Context, url, dir string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	gzReader, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	extracted := 0
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg || !strings.HasSuffix(header.Name, ".md") {
			continue
		}
		dest := filepath.Join(dir, filepath.Base(header.Name))
		out, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("create %s: %w", dest, err)
		}
		if _, err := io.Copy(out, tarReader); err != nil {
			out.Close()
			return fmt.Errorf("write %s: %w", dest, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
		extracted++
	}
	if extracted == 0 {
		return fmt.Errorf("no markdown files found in downloaded archive")
	}
	return nil
}

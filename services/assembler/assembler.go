package assembler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ssg-backend/lib/scrapers/steamdb"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ssg.services.assembler")

const (
	SettingsDirName = "steam_settings"
	ImagesDirName   = "achievement_images"

	achievementsFile = "achievements.json"
	dlcFile          = "DLC.txt"
	dlcConfigFile    = "configs.app.ini"
	appIDFile        = "steam_appid.txt"
)

// DerivedTextFiles are the artifact files re-derived from the stored
// page; a reprocess discards these but keeps the cached images.
var DerivedTextFiles = []string{achievementsFile, dlcFile, dlcConfigFile, appIDFile}

// Icon pairs an achievement with the cached files its icons resolved
// to; empty sources mean the icon is not available yet.
type Icon struct {
	Source     string
	GraySource string
}

type Request struct {
	OutputRoot string
	// user-managed folder copied verbatim into every artifact set;
	// may not exist
	ExtrasDir string

	AppID        string
	Achievements []steamdb.Achievement
	DLC          []steamdb.DLC
	// keyed by achievement ApiName
	Icons map[string]Icon
}

type achievementEntry struct {
	Name         string `json:"name"`
	DefaultValue int    `json:"defaultvalue"`
	DisplayName  string `json:"displayName"`
	Hidden       int    `json:"hidden"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	IconGray     string `json:"icongray"`
	IconGrayAlt  string `json:"icon_gray"`
}

// GameDir is the per-game output folder, one per resolved identifier.
func GameDir(outputRoot, appID string) string {
	return filepath.Join(outputRoot, appID)
}

// Assemble writes the full artifact set for one game. The set is built
// in a temporary directory and swapped in atomically on success, so a
// failed assembly never leaves a half-written set and a repeated one
// fully overwrites the previous files.
func Assemble(ctx context.Context, req Request) error {
	ctx, span := tracer.Start(ctx, "Assemble")
	defer span.End()
	span.SetAttributes(
		attribute.String("app_id", req.AppID),
		attribute.Int("achievements", len(req.Achievements)),
		attribute.Int("dlc", len(req.DLC)),
	)

	gameDir := GameDir(req.OutputRoot, req.AppID)
	err := os.MkdirAll(gameDir, 0755)
	if err != nil {
		return fail(span, "create game dir", err)
	}

	staging, err := os.MkdirTemp(gameDir, "."+SettingsDirName+"-*")
	if err != nil {
		return fail(span, "create staging dir", err)
	}
	defer os.RemoveAll(staging)

	err = writeArtifacts(req, staging)
	if err != nil {
		return fail(span, "write artifacts", err)
	}
	if req.ExtrasDir != "" {
		err = copyTree(req.ExtrasDir, staging)
		if err != nil {
			return fail(span, "copy extras", err)
		}
	}

	return swapIn(span, staging, filepath.Join(gameDir, SettingsDirName))
}

func fail(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return fmt.Errorf("%s: %w", msg, err)
}

// swapIn replaces the previous artifact set with the staged one; the
// previous set is moved aside first so a failed rename can restore it.
func swapIn(span trace.Span, staging, final string) error {
	backup := final + ".old"
	os.RemoveAll(backup)

	_, err := os.Stat(final)
	if err == nil {
		err = os.Rename(final, backup)
		if err != nil {
			return fail(span, "move previous artifact set aside", err)
		}
	}

	err = os.Rename(staging, final)
	if err != nil {
		os.Rename(backup, final)
		return fail(span, "swap in artifact set", err)
	}

	os.RemoveAll(backup)
	return nil
}

func writeArtifacts(req Request, dir string) error {
	entries := make([]achievementEntry, len(req.Achievements))
	imagesDir := filepath.Join(dir, ImagesDirName)
	err := os.MkdirAll(imagesDir, 0755)
	if err != nil {
		return err
	}

	placer := iconPlacer{imagesDir: imagesDir, names: map[string]string{}}
	for i, a := range req.Achievements {
		icon := req.Icons[a.ApiName]
		iconPath, err := placer.place(a.IconURL, icon.Source)
		if err != nil {
			return fmt.Errorf("place icon for %s: %w", a.ApiName, err)
		}
		grayPath, err := placer.place(a.GrayIconURL, icon.GraySource)
		if err != nil {
			return fmt.Errorf("place gray icon for %s: %w", a.ApiName, err)
		}
		entries[i] = achievementEntry{
			Name:         a.ApiName,
			DefaultValue: 0,
			DisplayName:  a.DisplayName,
			Hidden:       boolToInt(a.Hidden),
			Description:  a.Description,
			Icon:         iconPath,
			IconGray:     grayPath,
		}
		entries[i].IconGrayAlt = entries[i].IconGray
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	err = enc.Encode(entries)
	if err != nil {
		return err
	}
	err = os.WriteFile(filepath.Join(dir, achievementsFile), buf.Bytes(), 0644)
	if err != nil {
		return err
	}

	var dlcList strings.Builder
	for _, d := range req.DLC {
		fmt.Fprintf(&dlcList, "%d=%s\n", d.AppID, d.Title)
	}
	err = os.WriteFile(filepath.Join(dir, dlcFile), []byte(dlcList.String()), 0644)
	if err != nil {
		return err
	}

	if len(req.DLC) > 0 {
		var ini strings.Builder
		ini.WriteString("[app::dlcs]\n")
		ini.WriteString("unlock_all=1\n")
		for _, d := range req.DLC {
			fmt.Fprintf(&ini, "%d=%s\n", d.AppID, d.Title)
		}
		err = os.WriteFile(filepath.Join(dir, dlcConfigFile), []byte(ini.String()), 0644)
		if err != nil {
			return err
		}
	}

	return os.WriteFile(filepath.Join(dir, appIDFile), []byte(req.AppID), 0644)
}

// iconPlacer copies cached icons into the artifact's images folder
// under their original URL file names, returning the relative path the
// emulator config expects, or "" when the icon is unresolved. Distinct
// URLs sharing a file name get a URL-hash prefix instead of silently
// overwriting each other.
type iconPlacer struct {
	imagesDir string
	// file name -> the URL that claimed it
	names map[string]string
}

func (p iconPlacer) place(iconURL, source string) (string, error) {
	if source == "" || iconURL == "" {
		return "", nil
	}
	name := filepath.Base(strings.Split(iconURL, "?")[0])
	if name == "" || name == "." || name == "/" {
		name = filepath.Base(source)
	}
	if prev, claimed := p.names[name]; claimed && prev != iconURL {
		sum := sha256.Sum256([]byte(iconURL))
		name = hex.EncodeToString(sum[:4]) + "_" + name
	}
	p.names[name] = iconURL

	err := copyFile(source, filepath.Join(p.imagesDir, name))
	if err != nil {
		return "", err
	}
	return ImagesDirName + "/" + name, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("extras path %s is not a directory", src)
	}

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

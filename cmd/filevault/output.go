package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"filevault/internal/api"
	"filevault/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeObjectList(list []api.ObjectResponse) error {
	for _, obj := range list {
		if err := writePlain("%s\n", formatObjectLine(obj)); err != nil {
			return err
		}
	}
	return nil
}

func writeObjectDetail(obj api.ObjectResponse) error {
	lines := []string{
		fmt.Sprintf("id: %s", obj.ID),
		fmt.Sprintf("kind: %s", obj.Kind),
		fmt.Sprintf("filename: %s", obj.Filename),
		fmt.Sprintf("content_type: %s", obj.ContentType),
		fmt.Sprintf("length: %d", obj.Length),
		fmt.Sprintf("md5: %s", obj.MD5),
		fmt.Sprintf("url: %s", obj.URL),
		fmt.Sprintf("created_at: %s", formatTime(obj.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(obj.UpdatedAt)),
	}
	if obj.Image != nil {
		lines = append(lines, fmt.Sprintf("dimensions: %dx%d", obj.Image.Width, obj.Image.Height))
		if obj.Image.NoWatermark {
			lines = append(lines, "no_watermark: true")
		}
	}
	if obj.Description != "" {
		lines = append(lines, fmt.Sprintf("description: %s", obj.Description))
	}
	if obj.OwnerType != "" || obj.OwnerID != "" {
		lines = append(lines, fmt.Sprintf("owner: %s/%s", obj.OwnerType, obj.OwnerID))
	}
	if obj.IsTemp {
		lines = append(lines, "temp: true")
	}
	if obj.IsDeleted {
		lines = append(lines, "deleted: true")
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeStoreResult(resp api.StoreResponse) error {
	for _, item := range resp.Items {
		if item.Object != nil {
			if err := writePlain("%s\n", formatObjectLine(*item.Object)); err != nil {
				return err
			}
			continue
		}
		if err := writePlain("! %s: %s\n", item.Filename, item.Error); err != nil {
			return err
		}
	}
	return nil
}

func writeSweepResult(name string, resp api.SweepResponse) error {
	return writePlain("%s: scanned %d, copied %d, skipped %d, failed %d\n", name, resp.Scanned, resp.Copied, resp.Skipped, resp.Failed)
}

func formatObjectLine(obj api.ObjectResponse) string {
	flags := ""
	if obj.IsTemp {
		flags += " [temp]"
	}
	if obj.IsDeleted {
		flags += " [deleted]"
	}
	return fmt.Sprintf("%s %-5s %10d  %s%s", obj.ID, obj.Kind, obj.Length, obj.Filename, flags)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gemini-relay/internal/logger"
)

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes text records by default", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithOutput(&buf))
			l.Info("relay ready", "port", "3000")

			Expect(buf.String()).To(ContainSubstring("relay ready"))
			Expect(buf.String()).To(ContainSubstring("port=3000"))
		})

		It("filters records below the level", func() {
			var buf bytes.Buffer
			logger.New(logger.WithOutput(&buf)).Debug("hidden")
			Expect(buf.String()).To(BeEmpty())

			logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelDebug)).Debug("visible")
			Expect(buf.String()).To(ContainSubstring("visible"))
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON))
			l.Info("provider call failed", "status", 500)

			var parsed map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("provider call failed"))
			Expect(parsed["status"]).To(BeNumerically("==", 500))
		})

		It("writes pretty records at the configured level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatPretty), logger.WithLevel(slog.LevelWarn))
			l.Info("skipped")
			l.Warn("pretty output")

			Expect(buf.String()).NotTo(ContainSubstring("skipped"))
			Expect(buf.String()).To(ContainSubstring("pretty output"))
		})

		It("writes to every output", func() {
			var buf1, buf2 bytes.Buffer
			logger.New(logger.WithOutput(&buf1, &buf2)).Info("both")

			Expect(buf1.String()).To(ContainSubstring("both"))
			Expect(buf2.String()).To(ContainSubstring("both"))
		})
	})

	Describe("ParseLevel", func() {
		DescribeTable("maps LOG_LEVEL values",
			func(in string, want slog.Level) {
				got, err := logger.ParseLevel(in)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want))
			},
			Entry("empty", "", slog.LevelInfo),
			Entry("debug", "debug", slog.LevelDebug),
			Entry("upper case", "WARN", slog.LevelWarn),
			Entry("warning", "warning", slog.LevelWarn),
			Entry("error", " error ", slog.LevelError),
		)

		It("rejects unknown levels", func() {
			_, err := logger.ParseLevel("verbose")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ParseFormat", func() {
		It("defaults to text", func() {
			f, err := logger.ParseFormat("")
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(logger.FormatText))
		})

		It("rejects unknown formats", func() {
			_, err := logger.ParseFormat("xml")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("FromSettings", func() {
		It("enables debug for LOG_LEVEL=debug", func() {
			l, err := logger.FromSettings("debug", "json")
			Expect(err).NotTo(HaveOccurred())
			Expect(l.Handler().Enabled(context.Background(), slog.LevelDebug)).To(BeTrue())
		})

		It("stays at info otherwise", func() {
			l, err := logger.FromSettings("info", "text")
			Expect(err).NotTo(HaveOccurred())
			Expect(l.Handler().Enabled(context.Background(), slog.LevelDebug)).To(BeFalse())
		})

		It("applies extra options", func() {
			var buf bytes.Buffer
			l, err := logger.FromSettings("info", "json", logger.WithOutput(&buf))
			Expect(err).NotTo(HaveOccurred())

			l.Info("to buffer")
			Expect(buf.String()).To(ContainSubstring(`"msg":"to buffer"`))
		})

		It("reports bad settings", func() {
			_, err := logger.FromSettings("loud", "text")
			Expect(err).To(HaveOccurred())

			_, err = logger.FromSettings("info", "yaml")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Nop", func() {
		It("discards everything", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() { l.With("k", "v").Error("msg") }).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("dispatches to all loggers", func() {
			var text, structured bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithOutput(&text)),
				logger.New(logger.WithOutput(&structured), logger.WithFormat(logger.FormatJSON)),
			)

			multi.Info("broadcast", "key", "val")

			Expect(text.String()).To(ContainSubstring("broadcast"))
			Expect(structured.String()).To(ContainSubstring(`"key":"val"`))
		})

		It("keeps bound attributes and groups", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON)))

			multi.With("component", "relay").WithGroup("request").Info("handled", "method", "POST")

			var parsed map[string]any
			Expect(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
			Expect(parsed["component"]).To(Equal("relay"))

			group, ok := parsed["request"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["method"]).To(Equal("POST"))
		})

		It("respects the level of each logger", func() {
			var quiet, verbose bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithOutput(&quiet)),
				logger.New(logger.WithOutput(&verbose), logger.WithLevel(slog.LevelDebug)),
			)

			multi.Debug("detail")

			Expect(quiet.String()).To(BeEmpty())
			Expect(verbose.String()).To(ContainSubstring("detail"))
		})
	})
})

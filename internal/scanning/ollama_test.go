package scanning

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		pngData []byte
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		scanner, err = NewOllama(server.URL(), "llava")
		Expect(err).NotTo(HaveOccurred())

		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		var buf bytes.Buffer
		Expect(png.Encode(&buf, img)).To(Succeed())
		pngData = buf.Bytes()
	})

	AfterEach(func() {
		server.Close()
	})

	When("the chat API answers with a transcript", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"message": map[string]any{
						"role":    "assistant",
						"content": "```\nCAFE SOLO 1.20\nTOTAL 1.20\n```",
					},
					"done": true,
				}),
			))
		})

		It("should return the cleaned transcript", func() {
			text, err := scanner.ExtractText(context.Background(), pngData, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("CAFE SOLO 1.20\nTOTAL 1.20"))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the chat API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("should surface the status and body", func() {
			_, err := scanner.ExtractText(context.Background(), pngData, "image/png")
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the context is already cancelled", func() {
		It("should not call the API", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := scanner.ExtractText(ctx, pngData, "image/png")
			Expect(err).To(HaveOccurred())
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})
})

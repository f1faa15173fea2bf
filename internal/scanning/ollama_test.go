package scanning

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server   *ghttp.Server
		ollama   *Ollama
		lines    []string
		err      error
		captured ollamaGenerateRequest
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		ollama, err = NewOllama(server.URL()+"/", "llava")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	When("the model answers with a JSON array", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/generate"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, _ := io.ReadAll(r.Body)
					Expect(json.Unmarshal(body, &captured)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaGenerateResponse{
					Response: "```json\n[\"VISA\", \"4111 1111 1111 1111\"]\n```",
					Done:     true,
				}),
			))
		})

		JustBeforeEach(func() {
			lines, err = ollama.Recognize(context.Background(), pngBytes(), "image/png")
		})

		It("should return the lines", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(Equal([]string{"VISA", "4111 1111 1111 1111"}))
		})

		It("should send one image with the prompt", func() {
			Expect(captured.Model).To(Equal("llava"))
			Expect(captured.Stream).To(BeFalse())
			Expect(captured.Prompt).To(Equal(cardTranscribePrompt))
			Expect(captured.Images).To(HaveLen(1))
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns a recognition error", func() {
			_, err = ollama.Recognize(context.Background(), pngBytes(), "image/png")
			Expect(errors.Is(err, ErrRecognition)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("model not loaded"))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaGenerateResponse{
				Response: "I cannot read this image.",
				Done:     true,
			}))
		})

		It("returns a recognition error", func() {
			_, err = ollama.Recognize(context.Background(), pngBytes(), "image/png")
			Expect(errors.Is(err, ErrRecognition)).To(BeTrue())
		})
	})

	When("the model reports an error", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaGenerateResponse{
				Error: "model \"llava\" not found",
			}))
		})

		It("returns a recognition error naming the model", func() {
			_, err = ollama.Recognize(context.Background(), pngBytes(), "image/png")
			Expect(errors.Is(err, ErrRecognition)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("ollama llava"))
		})
	})

	When("the image cannot be decoded", func() {
		It("fails before calling the API", func() {
			_, err = ollama.Recognize(context.Background(), []byte("not an image"), "image/png")
			Expect(errors.Is(err, ErrRecognition)).To(BeTrue())
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})
})

var _ = Describe("candidateText", func() {
	It("joins the text parts of the first candidate", func() {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`["VISA",`), genai.Text(` "4111"]`)}},
		}}}
		text, err := candidateText(resp)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal(`["VISA", "4111"]`))
	})

	It("fails without candidates", func() {
		_, err := candidateText(&genai.GenerateContentResponse{})
		Expect(err).To(HaveOccurred())
	})

	It("fails when the candidate has no text", func() {
		_, err := candidateText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{}}}})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewGemini", func() {
	It("requires an API key", func() {
		_, err := NewGemini("", "")
		Expect(err).To(HaveOccurred())
	})
})

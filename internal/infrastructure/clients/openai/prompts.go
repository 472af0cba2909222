package openai

import (
	"fmt"
	"strings"

	"github.com/karasuemlak/backend/internal/domain/entities"
)

const rewriteSystemPrompt = `Sen Karasu Emlak için çalışan deneyimli bir Türkçe emlak içerik editörüsün.
Sana verilen metni anlamını ve gerçek bilgileri koruyarak daha akıcı, daha ayrıntılı ve arama motorları için daha uygun hale getir.
Kurallar:
- Metinde olmayan fiyat, metrekare, oda sayısı veya adres bilgisi UYDURMA.
- Kısa paragraflar kullan, abartılı ifadelerden ve büyük harfle bağırmaktan kaçın.
- İlanlarda sonunda okuyucuyu iletişime geçmeye davet eden bir cümle bulunsun.
Yalnızca şu şemaya uyan geçerli JSON döndür:
{
  "improved_text": string,
  "changes": string[] (en fazla 10 kısa madde, Türkçe)
}`

func buildRewriteUserPrompt(req entities.ImproveRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "İçerik türü: %s\n", req.ContentType.Label())
	fmt.Fprintf(&b, "Alan: %s\n", req.Field)
	fmt.Fprintf(&b, "Başlık: %s\n", req.Title)

	if req.Analysis != nil {
		fmt.Fprintf(&b, "Mevcut kalite puanı: %d/100\n", req.Analysis.Score)
		if len(req.Analysis.Issues) > 0 {
			b.WriteString("Tespit edilen sorunlar:\n")
			for _, issue := range req.Analysis.Issues {
				fmt.Fprintf(&b, "- %s\n", issue.Message)
			}
		}
		if len(req.Analysis.Suggestions) > 0 {
			b.WriteString("Öneriler:\n")
			for _, s := range req.Analysis.Suggestions {
				fmt.Fprintf(&b, "- %s\n", s)
			}
		}
	}

	b.WriteString("\nMetin:\n")
	b.WriteString(req.Text)
	return b.String()
}

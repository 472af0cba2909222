package improver

import (
	"context"
	"fmt"
	"strings"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
)

// MockRewriter expands text deterministically for local development
type MockRewriter struct{}

// NewMockRewriter creates a new mock rewriter
func NewMockRewriter() *MockRewriter {
	return &MockRewriter{}
}

func (m *MockRewriter) Name() string  { return "mock" }
func (m *MockRewriter) Model() string { return "template-v1" }

// Rewrite wraps the original text with location, detail and contact paragraphs
func (m *MockRewriter) Rewrite(ctx context.Context, req entities.ImproveRequest) (*providers.RewriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	original := strings.TrimSpace(req.Text)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Bu " + req.ContentType.Label()
	}

	intro := fmt.Sprintf("%s, Karasu ve çevresini yakından takip eden okuyucularımız için hazırlandı. %s", title, original)

	var body string
	switch req.ContentType {
	case entities.ContentTypeListing:
		body = "Mülk, Karasu merkezine ve sahile kısa bir mesafede yer alıyor. " +
			"Çevresinde market, okul ve toplu taşıma gibi günlük ihtiyaçlara yönelik olanaklar bulunuyor. " +
			"Yaz aylarında denize yürüyerek ulaşmak mümkün, kış aylarında ise sakin bir yaşam sunuyor. " +
			"Bölgedeki yeni yapılaşma, yatırım açısından da ilgi çekici bir tablo oluşturuyor."
	case entities.ContentTypeNews:
		body = "Gelişme, Karasu ve Sakarya genelindeki emlak piyasasını yakından ilgilendiriyor. " +
			"Yerel yetkililerin açıklamalarına göre süreç önümüzdeki aylarda da takip edilecek. " +
			"Uzmanlar, bölgedeki talebin sahil şeridinde yoğunlaşmaya devam edeceğini belirtiyor."
	default:
		body = "Bu yazıda Karasu'da konut arayanların dikkat etmesi gereken başlıca noktaları ele alıyoruz. " +
			"Konum, ulaşım ve bina yaşı gibi ölçütler, doğru kararı vermede belirleyici rol oynuyor. " +
			"Her ölçütü kendi ihtiyaçlarınızla karşılaştırarak değerlendirmeniz önerilir."
	}

	closing := "Detaylı bilgi almak ve yerinde görmek için bizi arayabilir, ofisimizi ziyaret edebilirsiniz."

	return &providers.RewriteResult{
		Text: intro + "\n\n" + body + "\n\n" + closing,
		Changes: []string{
			"Giriş paragrafı eklendi",
			"Konum ve çevre bilgisi genişletildi",
			"İletişim çağrısı eklendi",
		},
	}, nil
}

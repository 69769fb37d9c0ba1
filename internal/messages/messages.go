package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/okhunjon/sportpay-bot/types"
)

const ParseModeHTML = "HTML"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

// FormatDate renders dates the way they are shown to subscribers.
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

func ServiceName(s types.ServiceKind) string {
	if s == types.ServiceWrestling {
		return "Kurash Premium"
	}
	return "Futbol Premium"
}

func StartWelcome() string {
	return "👋 <b>Assalomu alaykum!</b>\n" +
		"Premium sport kanallariga obuna botiga xush kelibsiz.\n\n" +
		"⚽️ Futbol yoki 🤼 Kurash kanalini tanlang va to'lov turini belgilang."
}

func ChooseService() string {
	return "📺 <b>Kanalni tanlang:</b>"
}

func ChoosePayment(planName string, priceTiyin int64) string {
	return fmt.Sprintf("💳 <b>%s</b>\nNarxi: %s so'm / oy\n\nTo'lov usulini tanlang:",
		Escape(planName), FormatSom(priceTiyin))
}

// FormatSom renders a tiyin amount as whole so'm with thousand separators.
func FormatSom(tiyin int64) string {
	som := tiyin / 100
	s := fmt.Sprintf("%d", som)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func PaymentSuccess(service types.ServiceKind, end time.Time) string {
	return fmt.Sprintf("✅ <b>To'lov qabul qilindi!</b>\n\n"+
		"📺 Kanal: %s\n"+
		"⏰ Obuna tugash muddati: %s\n\n"+
		"Kanalga kirish havolasi birozdan so'ng yuboriladi.",
		ServiceName(service), FormatDate(end))
}

func BonusGranted(service types.ServiceKind, bonusDays int, end time.Time) string {
	return fmt.Sprintf("🎉 <b>Obuna faollashtirildi!</b>\n\n"+
		"📺 Kanal: %s\n"+
		"🎁 %d kunlik bonus: %s gacha\n\n"+
		"Bonus muddati tugagach, to'lov kartangizdan avtomatik yechiladi.",
		ServiceName(service), bonusDays, FormatDate(end))
}

func AutoRenewSuccess(service types.ServiceKind, end time.Time) string {
	return fmt.Sprintf("🔄 <b>Obunangiz uzaytirildi</b>\n\n"+
		"📺 Kanal: %s\n"+
		"⏰ Yangi tugash muddati: %s",
		ServiceName(service), FormatDate(end))
}

func AutoRenewReceiptQR(qrURL string) string {
	return fmt.Sprintf("🧾 To'lov cheki: %s", Escape(qrURL))
}

func ChargeFailed() string {
	return "🚫 <b>To'lovni amalga oshirib bo'lmadi</b>\n" +
		"Kartangizda mablag' yetarli ekanini tekshiring. Ertaga qayta urinib ko'ramiz."
}

func SubscriptionTerminated(service types.ServiceKind) string {
	return fmt.Sprintf("❌ <b>Obuna bekor qilindi</b>\n\n"+
		"📺 Kanal: %s\n"+
		"Ko'p martalik urinishlardan so'ng to'lovni yechib bo'lmadi. "+
		"Qayta obuna bo'lish uchun /start buyrug'ini yuboring.",
		ServiceName(service))
}

func ExpiringSoon(service types.ServiceKind, end time.Time) string {
	return fmt.Sprintf("⏳ <b>Obunangiz tugashiga oz qoldi</b>\n\n"+
		"📺 Kanal: %s\n"+
		"⏰ Tugash muddati: %s\n\n"+
		"Uzaytirish uchun «Obunani uzaytirish» tugmasini bosing.",
		ServiceName(service), FormatDate(end))
}

func BonusRevoked(service types.ServiceKind) string {
	return fmt.Sprintf("⚠️ <b>Karta o'chirildi</b>\n\n"+
		"📺 Kanal: %s\n"+
		"Bonus muddati bekor qilindi, chunki bonus karta saqlanishi sharti bilan berilgan edi.",
		ServiceName(service))
}

func BonusRolledBack(service types.ServiceKind, end time.Time) string {
	return fmt.Sprintf("⚠️ <b>Karta o'chirildi</b>\n\n"+
		"📺 Kanal: %s\n"+
		"Bonus kunlari bekor qilindi. Obunangiz %s gacha amal qiladi.",
		ServiceName(service), FormatDate(end))
}

func StatusActive(service types.ServiceKind, start, end time.Time) string {
	return fmt.Sprintf("ℹ️ <b>Obuna holati</b>\n\n"+
		"📺 Kanal: %s\n"+
		"✅ Faol\n"+
		"🗓 Boshlangan: %s\n"+
		"⏰ Tugaydi: %s",
		ServiceName(service), FormatDate(start), FormatDate(end))
}

func StatusInactive(service types.ServiceKind) string {
	return fmt.Sprintf("ℹ️ <b>Obuna holati</b>\n\n"+
		"📺 Kanal: %s\n"+
		"🚫 Faol obuna mavjud emas.",
		ServiceName(service))
}

func CardSaved(masked string) string {
	return fmt.Sprintf("💳 <b>Karta saqlandi</b>\n%s", Escape(masked))
}

func NoCard() string {
	return "💳 Saqlangan karta topilmadi."
}

func CardRemoved() string {
	return "🗑 <b>Karta o'chirildi</b>"
}

func AskCardNumber() string {
	return "💳 Karta raqamini yuboring (16 raqam):"
}

func AskExpire() string {
	return "🗓 Karta amal qilish muddatini yuboring (MM/YY):"
}

func AskOTP() string {
	return "🔐 Telefoningizga yuborilgan tasdiqlash kodini kiriting:"
}

func ErrorDefault() string {
	return "🚫 <b>Xatolik yuz berdi</b>\nIltimos, qayta urinib ko'ring."
}

func ErrorUnknownCommand() string {
	return "❓ <b>Buyruq topilmadi</b>"
}

package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgUnexpectedErr = `Beklenmeyen bir hata oluştu: %s`
	MsgVersionInfo   = "Sürüm: %s\nDerleme: %s"
	MsgStartPrompt   = `
		*Kasko değeri sorgulama*

		Araç ruhsatınızın net bir fotoğrafını gönderin. Ruhsattaki marka, model ve model yılını okuyup aracın kasko değerini hesaplarım.

		Fiyat listesinde kayıt bulunursa resmi liste değeri, bulunmazsa yapay zeka tahmini gösterilir.

		/yeni ile yeni bir sorgu başlatabilirsiniz.`
	MsgSendPhotoPrompt = "Kasko değeri için araç ruhsatının fotoğrafını gönderin."
	MsgReset           = "Tamam, yeni bir ruhsat fotoğrafı gönderebilirsiniz."
)

// =============================================================================
// Valuation messages
// =============================================================================

const (
	MsgAnalyzing          = "🔎 Ruhsat inceleniyor, lütfen bekleyin..."
	MsgAnalysisInProgress = "⏳ Önceki fotoğrafın analizi devam ediyor. Sonucu bekleyin veya iptal için /yeni yazın."
	MsgAnalysisCanceled   = "Analiz iptal edildi."
	MsgAnalysisFailed     = `
		❌ %s

		Daha net bir fotoğraf göndererek tekrar deneyebilirsiniz.`
	MsgDownloadFailed    = "Fotoğraf indirilemedi, lütfen tekrar gönderin."
	MsgFileTooLarge      = "Dosya çok büyük (en fazla %d MB)."
	MsgUnsupportedFile   = "Bu dosya türü desteklenmiyor. Ruhsatın fotoğrafını JPEG veya PNG olarak gönderin."
	MsgSourceOfficial    = "TSB kasko değer listesi (%s)"
	MsgSourceEstimate    = "Yapay zeka tahmini (güven: %%%d)"
	MsgValueRangeFmt     = "%s - %s"
	MsgResultHeaderFmt   = "*🚗 %s %s (%d)*"
	MsgResultFuelFmt     = "Yakıt: %s"
	MsgResultChassisFmt  = "Şasi no (son 4): %s"
	MsgResultValueFmt    = "Kasko değeri: *%s*"
	MsgResultSourceFmt   = "Kaynak: %s"
	MsgResultNewQueryTip = "_Yeni sorgu için başka bir ruhsat fotoğrafı gönderin._"
)

// =============================================================================
// Admin messages
// =============================================================================

const (
	MsgAdminOnly       = "Fiyat listesi yükleme yalnızca yöneticiye açıktır."
	MsgImportStarted   = "📥 Fiyat listesi okunuyor..."
	MsgImportCompleted = `
		✅ Fiyat listesi güncellendi.

		Kayıt: %d
		Marka: %d
		Model yılları: %d-%d`
	MsgImportCompletedWide = "Tablo biçimi: yıl sütunlu (%d boş hücre atlandı)"
	MsgImportRejected      = `
		❌ Fiyat listesi reddedildi: %s

		Önceki liste kullanılmaya devam ediyor.`
	MsgStatus = `
		*Fiyat listesi durumu*

		Kayıt: %d
		Marka: %d
		Model yılları: %s
		Son yükleme: %s`
	MsgStatusNoImport = "yok"
)

package telegram

import "fmt"

// User-facing message templates. Replies are sent as plain text so model
// output never has to be escaped.

const (
	// Admission
	BannedMessage               = "تم حظرك من استخدام البوت 🖤."
	NotSubscribedTemplate       = "يـجـب الاشـتـراك في %s اولاً 🖤."
	SubscribeRequiredTemplate   = "عـزيـزي %s 🖤.\nيـجـب الاشـتـراك في قـنـاة الـدعـم اولاً 🖤."
	SubscriptionConfirmed       = "شـكـراً لاشـتـراكـك 🖤.\nاسـتـخـدم /start لـبـدء الاسـتـخـدام 🖤."
	SubscriptionStillMissing    = "لـم يـتـم الاشـتـراك بـعـد 🖤.\nاشـتـرك ثـم اعـد المحاولة 🖤."
	SubscribeButtonText         = "اشترك في القناة 🖤"
	CheckSubscriptionButtonText = "تـفـعـيـل 🖤"

	// Welcome and menu
	WelcomeTemplate = `اهـلا بـك يـا %s 🖤.
في بوت تحليل المسائل والصور ومساعدتك في واجباتك الدراسية 🖤.

اخـتـر واحـدة من الـخـيـارات الـتـالـيـة 🖤.`
	SolveMathButtonText     = "حـل مـسـألـة 🧮"
	ExplainLessonButtonText = "شـرح درس 📚"
	AnalyzeImageButtonText  = "تـحـلـيـل صـورة 🖼"
	HelpButtonText          = "الـمـسـاعـدة 🆘"

	SolveMathPrompt     = "ارسـل الـمـسـألـة الـريـاضـيـة 🧮.\nوسـأحـاول حـلـهـا لـك 🖤."
	ExplainLessonPrompt = "ارسـل اسـم الـدرس او الـسـؤال الـذي تـريـد شـرحـه 📚.\nوسـأشـرحـه لـك خـطـوة بـخـطـوة 🖤."
	AnalyzeImagePrompt  = "ارسـل الـصـورة الـتـي تـريـد تـحـلـيـلـهـا 🖼.\nوسـأقـوم بـتـحـلـيـلـهـا 🖤."

	HelpTemplate = `🆘 الـمـسـاعـدة 🖤:

• لـحـل مـسـألـة: اخـتـر "حـل مـسـألـة" ثـم ارسـل الـمـسـألـة 🖤.
• لـشـرح درس: اخـتـر "شـرح درس" ثـم ارسـل سـؤالـك 🖤.
• لـتـحـلـيـل صـورة: اخـتـر "تـحـلـيـل صـورة" ثـم ارسـل الـصـورة 🖤.
• للاتـصـال بـالـمـطـور: %s 🖤.

بـوت مـسـاعـدة دراسـيـة 🖤.`

	UnknownCommandMessage = "امـر غـيـر مـعـروف 🖤.\nاسـتـخـدم /start لـعـرض الـخـيـارات 🖤."

	// Processing status
	SearchingMessage      = "جـاري الـبـحـث عـن إجـابـة 🖤."
	AnalyzingImageMessage = "جـاري تـحـلـيـل الـصـورة 🖤."

	GenericErrorMessage = "عذراً، حدث خطأ غير متوقع 🖤. حاول مرة أخرى."

	// Admin console
	AdminOnlyMessage        = "هـذا الامـر للمـطـور فـقـط 🖤."
	BroadcastUsage          = "اسـتـخـدم: /broadcast <الرسالة> 🖤."
	BroadcastHeaderTemplate = "📢 إشـعـار من المطور:\n\n%s"
	BroadcastReportTemplate = "تم الارسال 🖤.\nنجح: %d 🖤.\nفشل: %d 🖤."
	BanUsage                = "اسـتـخـدم: /ban <user_id> 🖤."
	UnbanUsage              = "اسـتـخـدم: /unban <user_id> 🖤."
	InvalidUserIDMessage    = "رقـم الـمـسـتـخـدم غـيـر صـحـيـح 🖤."
	UserBannedTemplate      = "تم حـظـر الـمـسـتـخـدم %d 🖤."
	UserUnbannedTemplate    = "تم فـك حـظـر الـمـسـتـخـدم %d 🖤."
	StatsTemplate           = `📊 إحـصـائـيـات الـبـوت 🖤:

👥 عـدد الـمـسـتـخـدمـيـن: %d 🖤.
📅 تـاريـخ الـيـوم: %s 🖤.`

	// Admin notifications
	NewUserNoticeTemplate = `ـ هـناك شخـص دخل الي بـوتك 🖤.
- الاسم %s 🩵.
- اليوزر %s 💜.
- التوقيت %s 🩷.
- الايدي %d 💙.`
	NoUsernameText   = "بدون يوزر"
	DefaultFirstName = "مستخدم"
	StatsDateLayout  = "2006/01/02"
	NoticeTimeLayout = "2006/01/02 15:04:05"
)

func notSubscribedMessage(channelID string) string {
	return fmt.Sprintf(NotSubscribedTemplate, channelID)
}

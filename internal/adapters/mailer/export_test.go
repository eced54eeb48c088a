package mailer

var NewMessage = newMessage
